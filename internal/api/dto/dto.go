// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/speech"
)

// CreateBookRequest is the validated shape of the multipart create form.
type CreateBookRequest struct {
	Stories []string `validate:"min=1,dive,required"`
}

// BookSummary is the list-view projection of a book.
type BookSummary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	CoverImage string            `json:"cover_image"`
	Status     domain.BookStatus `json:"status"`
}

// BooksListResponse wraps the full book list.
type BooksListResponse struct {
	Books []BookSummary `json:"books"`
}

// BookDetailResponse is the full book record as served to clients.
type BookDetailResponse struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	CoverImage string            `json:"cover_image"`
	Status     domain.BookStatus `json:"status"`
	Pages      []domain.Page     `json:"pages"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DeleteBookResponse reports a completed deletion.
type DeleteBookResponse struct {
	Message string `json:"message"`
	BookID  string `json:"book_id"`
}

// NewBookSummary projects a domain book into its list form.
func NewBookSummary(book *domain.Book) BookSummary {
	return BookSummary{
		ID:         book.ID,
		Title:      book.Title,
		CoverImage: book.CoverImage,
		Status:     book.Status,
	}
}

// NewBookDetail projects a domain book into its detail form.
func NewBookDetail(book *domain.Book) BookDetailResponse {
	return BookDetailResponse{
		ID:         book.ID,
		Title:      book.Title,
		CoverImage: book.CoverImage,
		Status:     book.Status,
		Pages:      book.Pages,
		CreatedAt:  book.CreatedAt,
	}
}

// SpeechBatchBody is the JSON body of POST /tts/generate.
type SpeechBatchBody struct {
	Texts     [][]string `json:"texts" required:"true" doc:"Nested text lines, grouped per page"`
	VoiceID   string     `json:"voice_id,omitempty"`
	ModelID   string     `json:"model_id,omitempty"`
	Language  string     `json:"language,omitempty"`
	Stability float64    `json:"stability,omitempty" minimum:"0" maximum:"1"`
	Style     float64    `json:"style,omitempty" minimum:"0" maximum:"1"`
}

// SpeechBatchResponse is the wire shape of a batch synthesis result:
// nested paths with null at every failed position.
type SpeechBatchResponse struct {
	Success      bool        `json:"success"`
	BatchID      string      `json:"batch_id"`
	Paths        [][]*string `json:"paths"`
	TotalCount   int         `json:"total_count"`
	SuccessCount int         `json:"success_count"`
	FailedCount  int         `json:"failed_count"`
	DurationMS   int64       `json:"duration_ms"`
}

// NewSpeechBatchResponse projects a batch result into the wire shape.
func NewSpeechBatchResponse(result *speech.BatchResult, duration time.Duration) SpeechBatchResponse {
	nested := result.Paths()
	paths := make([][]*string, len(nested))
	for p, group := range nested {
		paths[p] = make([]*string, len(group))
		for l, path := range group {
			if path != "" {
				paths[p][l] = &nested[p][l]
			}
		}
	}

	success := result.SuccessCount()
	return SpeechBatchResponse{
		Success:      true,
		BatchID:      result.BatchID,
		Paths:        paths,
		TotalCount:   result.TotalCount(),
		SuccessCount: success,
		FailedCount:  result.TotalCount() - success,
		DurationMS:   duration.Milliseconds(),
	}
}

// WordBody is the JSON body of POST /tts/word.
type WordBody struct {
	Word string `json:"word" required:"true" maxLength:"50"`
}

// VoicesResponse lists the available synthesis voices.
type VoicesResponse struct {
	Voices []speech.Voice `json:"voices"`
}

// ServiceInfo is the root endpoint payload.
type ServiceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}
