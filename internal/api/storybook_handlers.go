package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moriai/storybook-server/internal/api/dto"
	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/generation"
	"github.com/moriai/storybook-server/internal/http/response"
)

// maxUploadBytes bounds the multipart create request body.
const maxUploadBytes = 64 << 20

// handleCreateBook accepts the multipart create form, registers a placeholder
// book, hands the pipeline to the background runner, and returns immediately.
// Clients poll the book's status afterwards.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.BadRequest(w, "invalid multipart form", s.logger)
		return
	}

	stories := r.MultipartForm.Value["stories"]
	// A single comma-joined stories field is accepted and split.
	if len(stories) == 1 && strings.Contains(stories[0], ",") {
		parts := strings.Split(stories[0], ",")
		stories = stories[:0]
		for _, p := range parts {
			stories = append(stories, strings.TrimSpace(p))
		}
	}

	if err := s.validate.Struct(dto.CreateBookRequest{Stories: stories}); err != nil {
		response.BadRequest(w, "at least one non-empty story is required", s.logger)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(stories) != len(files) {
		response.BadRequest(w, "stories and images count mismatch", s.logger)
		return
	}

	sources := make([]generation.SourceImage, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			response.BadRequest(w, "unreadable image upload: "+header.Filename, s.logger)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			response.BadRequest(w, "unreadable image upload: "+header.Filename, s.logger)
			return
		}
		sources = append(sources, generation.SourceImage{
			Filename: header.Filename,
			Data:     data,
			MimeType: header.Header.Get("Content-Type"),
		})
	}

	book := domain.NewBook("")
	if _, err := s.repo.Create(r.Context(), book); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.runner.CreateBook(book.ID, stories, sources)

	s.logger.Info("Book registered, pipeline queued", "book_id", book.ID, "pages", len(stories))
	response.Created(w, dto.NewBookDetail(book), s.logger)
}

// handleListBooks returns summaries of every book, served from the cache.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books := s.books.ListBooks(r.Context())

	summaries := make([]dto.BookSummary, 0, len(books))
	for _, book := range books {
		summaries = append(summaries, dto.NewBookSummary(book))
	}

	response.Success(w, dto.BooksListResponse{Books: summaries}, s.logger)
}

// handleGetBook returns one full book record.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.books.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, dto.NewBookDetail(book), s.logger)
}

// handleDeleteBook removes a book's assets and record.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	if err := s.books.DeleteBook(r.Context(), bookID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, dto.DeleteBookResponse{
		Message: "Book deleted successfully",
		BookID:  bookID,
	}, s.logger)
}

// handleCacheStats reports the repository index state.
func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.repo.GetCacheStats(), s.logger)
}
