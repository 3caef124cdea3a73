// Package di provides dependency injection configuration for the storybook server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/di/providers"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/service"
	"github.com/moriai/storybook-server/internal/task"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideBookRepository)
	do.Provide(injector, providers.ProvideAssetStorage)

	// Generation and speech
	do.Provide(injector, providers.ProvideGenerationClient)
	do.Provide(injector, providers.ProvideSpeech)

	// Business services
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideTaskRunner)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
// Invocation order here fixes the container's reverse shutdown order: the HTTP
// server stops first, then the background runner drains, then the store closes.
func Bootstrap(injector *do.RootScope) error {
	invocations := []func() error{
		func() error { _, err := do.Invoke[*config.Config](injector); return err },
		func() error { _, err := do.Invoke[*logger.Logger](injector); return err },
		func() error { _, err := do.Invoke[*providers.StoreHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.RepositoryHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.AssetStorageHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.GenerationHandle](injector); return err },
		func() error { _, err := do.Invoke[*providers.Speech](injector); return err },
		func() error { _, err := do.Invoke[*service.BookService](injector); return err },
		func() error { _, err := do.Invoke[*task.Runner](injector); return err },
		func() error { _, err := do.Invoke[*providers.HTTPServerHandle](injector); return err },
	}

	for _, invoke := range invocations {
		if err := invoke(); err != nil {
			return err
		}
	}

	return nil
}
