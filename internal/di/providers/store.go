package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the durable book store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Store.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Book store initialized", "path", cfg.Store.Path)

	return &StoreHandle{Store: db}, nil
}

// RepositoryHandle carries the warmed-up book repository.
//
// Cache warm-up happens here, before the server provider can resolve, so no
// request is ever served from a cold index.
type RepositoryHandle struct {
	*store.BookRepository
}

// ProvideBookRepository provides the book repository with its cache populated.
func ProvideBookRepository(i do.Injector) (*RepositoryHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	repo := store.NewBookRepository(storeHandle.Store, log.Logger)
	if err := repo.InitializeCache(context.Background()); err != nil {
		return nil, err
	}

	stats := repo.GetCacheStats()
	log.Info("Book cache warmed up", "books", stats.Books)

	return &RepositoryHandle{BookRepository: repo}, nil
}
