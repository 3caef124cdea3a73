package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/generation/gemini"
	"github.com/moriai/storybook-server/internal/logger"
)

// GenerationHandle wraps the generative model client with Shutdownable.
type GenerationHandle struct {
	*gemini.Client
}

// Shutdown implements do.Shutdownable.
func (h *GenerationHandle) Shutdown() error {
	return h.Close()
}

// ProvideGenerationClient provides the script, image and video generation client.
func ProvideGenerationClient(i do.Injector) (*GenerationHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := gemini.NewClient(context.Background(), cfg.Generation, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Generation client ready",
		"script_model", cfg.Generation.ScriptModel,
		"image_model", cfg.Generation.ImageModel,
		"video_model", cfg.Generation.VideoModel,
	)

	return &GenerationHandle{Client: client}, nil
}
