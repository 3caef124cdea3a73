// Package task runs book generation pipelines off the request path.
package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/generation"
	"github.com/moriai/storybook-server/internal/service"
	"github.com/moriai/storybook-server/internal/store"
)

// Runner owns the fire-and-forget pipeline goroutines. The HTTP handler
// registers a book and returns immediately; the runner reports the outcome by
// updating the repository. Shutdown cancels in-flight pipelines and waits for
// them to finalize their records.
type Runner struct {
	service *service.BookService
	repo    *store.BookRepository
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates the background runner.
func NewRunner(svc *service.BookService, repo *store.BookRepository, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		service: svc,
		repo:    repo,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// CreateBook launches the full generation pipeline for an already-registered
// placeholder book and returns immediately. The pipeline's terminal result,
// success or error, lands in the repository; a panic or a failed update
// patches the record to the error status so no book is left at process.
func (r *Runner) CreateBook(bookID string, stories []string, pageImages []generation.SourceImage) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Pipeline panicked", "book_id", bookID, "panic", rec)
				r.patchError(bookID)
			}
		}()

		r.logger.Info("Background pipeline starting", "book_id", bookID)

		book, err := r.service.CreateWithGeneration(r.ctx, stories, pageImages, bookID)
		if err != nil {
			r.logger.Error("Pipeline failed", "book_id", bookID, "error", err)
		}
		if book == nil {
			r.patchError(bookID)
			return
		}

		if err := r.repo.Update(r.ctx, bookID, book); err != nil {
			r.logger.Error("Failed to store pipeline result", "book_id", bookID, "error", err)
			r.patchError(bookID)
			return
		}

		r.logger.Info("Background pipeline finished", "book_id", bookID, "status", book.Status)
	}()
}

// patchError best-effort flips an existing record to the error status.
func (r *Runner) patchError(bookID string) {
	ctx := context.Background()

	book, err := r.repo.Get(ctx, bookID)
	if err != nil {
		r.logger.Error("Cannot patch missing book to error", "book_id", bookID, "error", err)
		return
	}

	patched := *book
	patched.Status = domain.StatusError
	if err := r.repo.Update(ctx, bookID, &patched); err != nil {
		r.logger.Error("Failed to patch book status", "book_id", bookID, "error", err)
	}
}

// Shutdown cancels in-flight pipelines and waits for their records to settle.
func (r *Runner) Shutdown() error {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("Task runner stopped")
	return nil
}
