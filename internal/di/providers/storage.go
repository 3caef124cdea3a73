package providers

import (
	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/storage"
)

// AssetStorageHandle carries the generated asset storage service.
type AssetStorageHandle struct {
	*storage.Service
}

// ProvideAssetStorage provides the asset storage service with its media
// directories created.
func ProvideAssetStorage(i do.Injector) (*AssetStorageHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc, err := storage.NewService(cfg.Storage.ImageDir, cfg.Storage.VideoDir, cfg.Storage.SoundDir, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Asset storage ready",
		"image_dir", cfg.Storage.ImageDir,
		"video_dir", cfg.Storage.VideoDir,
		"sound_dir", cfg.Storage.SoundDir,
	)

	return &AssetStorageHandle{Service: svc}, nil
}
