package providers

import (
	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/service"
	"github.com/moriai/storybook-server/internal/task"
)

// ProvideBookService provides the generation pipeline orchestrator.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	repo := do.MustInvoke[*RepositoryHandle](i)
	assets := do.MustInvoke[*AssetStorageHandle](i)
	gen := do.MustInvoke[*GenerationHandle](i)
	sp := do.MustInvoke[*Speech](i)

	return service.NewBookService(repo.BookRepository, assets.Service, gen.Client, sp.Batcher, cfg.Generation, log.Logger)
}

// ProvideTaskRunner provides the background pipeline runner. The runner
// implements do.Shutdownable itself, so the container drains in-flight
// pipelines before the store closes.
func ProvideTaskRunner(i do.Injector) (*task.Runner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	repo := do.MustInvoke[*RepositoryHandle](i)
	books := do.MustInvoke[*service.BookService](i)

	return task.NewRunner(books, repo.BookRepository, log.Logger), nil
}
