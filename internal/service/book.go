// Package service contains the book business logic: the generation
// orchestrator and the delete flow that keeps records and assets in step.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/errors"
	"github.com/moriai/storybook-server/internal/generation"
	"github.com/moriai/storybook-server/internal/id"
	"github.com/moriai/storybook-server/internal/media/images"
	"github.com/moriai/storybook-server/internal/speech"
	"github.com/moriai/storybook-server/internal/storage"
	"github.com/moriai/storybook-server/internal/store"
)

// Generator bundles the three generation capabilities one pipeline run needs.
// The gemini client satisfies it; tests wire in fakes per capability.
type Generator interface {
	generation.ScriptGenerator
	generation.ImageGenerator
	generation.VideoGenerator
}

// BookService orchestrates the end-to-end generation pipeline for one book
// and coordinates deletion of a book's record together with its assets.
type BookService struct {
	repo    *store.BookRepository
	storage *storage.Service
	gen     Generator
	speech  speech.Batcher
	logger  *slog.Logger

	// pageGate caps simultaneous per-page generation tasks within one run.
	// Sized independently from the speech engine's admission limit.
	pageGate        *semaphore.Weighted
	maxLinesPerPage int
}

// NewBookService creates the orchestrator.
func NewBookService(
	repo *store.BookRepository,
	assets *storage.Service,
	gen Generator,
	batcher speech.Batcher,
	cfg config.GenerationConfig,
	logger *slog.Logger,
) (*BookService, error) {
	if cfg.MaxConcurrentPages < 1 {
		return nil, errors.Validation("page concurrency limit must be at least 1")
	}
	maxLines := cfg.MaxLinesPerPage
	if maxLines < 1 {
		maxLines = 3
	}

	return &BookService{
		repo:            repo,
		storage:         assets,
		gen:             gen,
		speech:          batcher,
		logger:          logger,
		pageGate:        semaphore.NewWeighted(int64(cfg.MaxConcurrentPages)),
		maxLinesPerPage: maxLines,
	}, nil
}

// CreateWithGeneration runs the full pipeline for one book: script stage,
// then a join of batch speech and per-page asset generation, then merge and
// finalize. The returned Book always carries a terminal status.
//
// Per-page and per-line failures degrade locally (placeholder page, empty
// audio reference) and still finalize as success. A fatal error finalizes as
// error, rolls back the book's asset subtree best-effort, and propagates.
func (s *BookService) CreateWithGeneration(
	ctx context.Context,
	stories []string,
	pageImages []generation.SourceImage,
	existingID string,
) (*domain.Book, error) {
	if len(stories) == 0 || len(pageImages) == 0 {
		return nil, errors.Validation("at least one page is required")
	}
	if len(stories) != len(pageImages) {
		return nil, errors.Validation("stories and images count mismatch: %d vs %d", len(stories), len(pageImages))
	}

	book := domain.NewBook(existingID)
	s.logger.Info("Pipeline started", "book_id", book.ID, "pages", len(stories))

	// Script stage blocks everything downstream.
	script, err := s.gen.GenerateScript(ctx, stories, len(stories), s.maxLinesPerPage)
	if err != nil || len(script) == 0 {
		// No assets exist yet, so no rollback is needed.
		s.logger.Warn("Script stage produced nothing", "book_id", book.ID, "error", err)
		book.Status = domain.StatusError
		return book, nil
	}
	if len(script) > len(pageImages) {
		script = script[:len(pageImages)]
	}

	if err := s.generateAndMerge(ctx, book, script, pageImages); err != nil {
		book.Status = domain.StatusError
		s.rollback(book.ID)
		return book, err
	}

	book.Status = domain.StatusSuccess
	s.logger.Info("Pipeline finished", "book_id", book.ID, "pages", len(book.Pages))
	return book, nil
}

// generateAndMerge runs the two-branch join and assembles the book in place.
func (s *BookService) generateAndMerge(
	ctx context.Context,
	book *domain.Book,
	script [][]string,
	pageImages []generation.SourceImage,
) error {
	var batch *speech.BatchResult
	pages := make([]domain.Page, len(script))

	g, gctx := errgroup.WithContext(ctx)

	// Branch A: one batch call covering every dialogue line. Per-line
	// failures are already absorbed inside the batcher; an error here means
	// the batch infrastructure itself broke, which is fatal for the book.
	g.Go(func() error {
		result, err := s.speech.SynthesizeBatch(gctx, script, speech.VoiceParams{})
		if err != nil {
			return err
		}
		batch = result
		return nil
	})

	// Branch B: independent per-page tasks behind the page gate. A page
	// failure becomes a placeholder so siblings keep their slots.
	g.Go(func() error {
		pg, pgctx := errgroup.WithContext(gctx)
		for i := range script {
			pg.Go(func() error {
				if err := s.pageGate.Acquire(pgctx, 1); err != nil {
					pages[i] = domain.PlaceholderPage(i + 1)
					return nil
				}
				defer s.pageGate.Release(1)

				page, err := s.generatePage(pgctx, i, script[i], pageImages[i], book.ID)
				if err != nil {
					s.logger.Error("Page generation failed, using placeholder",
						"book_id", book.ID, "page", i+1, "error", err)
					pages[i] = domain.PlaceholderPage(i + 1)
					return nil
				}
				pages[i] = page
				return nil
			})
		}
		return pg.Wait()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Merge: attach dialogues by index tag, never by array position.
	for i := range pages {
		dialogues := make([]domain.Dialogue, 0, len(script[i]))
		for j, text := range script[i] {
			audio := ""
			if batch != nil {
				audio = batch.PathFor(i, j)
			}
			dialogues = append(dialogues, domain.Dialogue{
				ID:       id.MustGenerate(id.PrefixDialogue),
				Index:    j + 1,
				Text:     text,
				AudioURL: audio,
			})
		}
		pages[i].Dialogues = dialogues
	}

	book.Pages = pages
	book.CoverImage = coverFor(pages)
	return nil
}

// coverFor picks the cover: the first page's poster still when that page is a
// video, otherwise its primary content.
func coverFor(pages []domain.Page) string {
	if len(pages) == 0 {
		return ""
	}
	first := pages[0]
	if first.Type == domain.PageTypeVideo && first.FallbackImage != "" {
		return first.FallbackImage
	}
	return first.Content
}

// generatePage renders one page: illustration first, then an optional video
// clip seeded from it. A video failure downgrades the page to a plain image;
// an illustration failure fails the whole page.
func (s *BookService) generatePage(
	ctx context.Context,
	idx int,
	lines []string,
	source generation.SourceImage,
	bookID string,
) (domain.Page, error) {
	imageBytes, err := s.gen.GenerateImage(ctx, source, lines)
	if err != nil {
		return domain.Page{}, err
	}

	blurHash, err := images.ComputeBlurHash(imageBytes)
	if err != nil {
		s.logger.Warn("BlurHash computation failed", "book_id", bookID, "page", idx+1, "error", err)
	}

	imageURL, err := s.storage.Upload(imageBytes, bookID, fmt.Sprintf("page_%d.png", idx+1), domain.MediaImage)
	if err != nil {
		return domain.Page{}, err
	}

	page := domain.Page{
		ID:        id.MustGenerate(id.PrefixPage),
		Index:     idx + 1,
		Type:      domain.PageTypeImage,
		Content:   imageURL,
		BlurHash:  blurHash,
		Dialogues: []domain.Dialogue{},
	}

	videoBytes, err := s.gen.GenerateVideo(ctx, imageBytes, lines)
	if err != nil {
		s.logger.Warn("Video generation failed, keeping image page",
			"book_id", bookID, "page", idx+1, "error", err)
		return page, nil
	}

	videoURL, err := s.storage.Upload(videoBytes, bookID, fmt.Sprintf("page_%d.mp4", idx+1), domain.MediaVideo)
	if err != nil {
		s.logger.Warn("Video upload failed, keeping image page",
			"book_id", bookID, "page", idx+1, "error", err)
		return page, nil
	}

	page.Type = domain.PageTypeVideo
	page.Content = videoURL
	page.FallbackImage = imageURL
	return page, nil
}

// rollback removes the book's entire asset subtree. Best effort: a rollback
// failure is logged and never overrides the original pipeline failure.
func (s *BookService) rollback(bookID string) {
	s.logger.Warn("Rolling back book assets", "book_id", bookID)
	if !s.storage.DeleteAll(bookID) {
		s.logger.Error("Rollback incomplete", "book_id", bookID)
	}
}

// GetBook returns one book record.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return s.repo.Get(ctx, bookID)
}

// ListBooks returns all book records.
func (s *BookService) ListBooks(ctx context.Context) []*domain.Book {
	return s.repo.GetAll(ctx)
}

// DeleteBook removes a book's assets and then its record. Asset deletions are
// best effort; the record is removed regardless so the book disappears from
// the index even when some files linger.
func (s *BookService) DeleteBook(ctx context.Context, bookID string) error {
	book, err := s.repo.Get(ctx, bookID)
	if err != nil {
		return err
	}

	failed := 0
	for _, page := range book.Pages {
		for _, asset := range page.Assets() {
			if !s.storage.Delete(asset.URL, asset.MediaType) {
				failed++
			}
		}
	}
	if failed > 0 {
		s.logger.Warn("Some assets could not be deleted", "book_id", bookID, "failed", failed)
	}

	// Sweep whatever asset files remain under the book's namespace.
	s.storage.DeleteAll(bookID)

	return s.repo.Delete(ctx, bookID)
}
