package providers

import (
	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/speech"
)

// Speech bundles the batch synthesizer with the optional in-process engine.
// Engine is nil in remote mode; the word and voice endpoints are then owned by
// the remote TTS service.
type Speech struct {
	Batcher speech.Batcher
	Engine  *speech.Engine
}

// ProvideSpeech provides the speech stack selected by TTS_MODE.
func ProvideSpeech(i do.Injector) (*Speech, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Speech.Mode == "remote" {
		log.Info("Speech synthesis in remote mode", "url", cfg.Speech.RemoteURL)
		return &Speech{Batcher: speech.NewClient(cfg.Speech.RemoteURL, log.Logger)}, nil
	}

	synth, err := speech.NewElevenLabs(cfg.Speech.APIKey, log.Logger)
	if err != nil {
		return nil, err
	}

	engine, err := speech.NewEngine(synth, cfg.Speech, cfg.Storage.SoundDir, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Speech synthesis in local mode",
		"voice_id", cfg.Speech.VoiceID,
		"max_concurrent", cfg.Speech.MaxConcurrent,
	)

	return &Speech{Batcher: engine, Engine: engine}, nil
}
