// Package domain contains the core business entities for the storybook service.
package domain

import (
	"time"

	"github.com/moriai/storybook-server/internal/id"
)

// BookStatus tracks the lifecycle of a generated storybook.
type BookStatus string

const (
	// StatusProcess means the generation pipeline is still running; pages are empty.
	StatusProcess BookStatus = "process"
	// StatusSuccess is terminal: the book was assembled, possibly with degraded content.
	StatusSuccess BookStatus = "success"
	// StatusError is terminal: the pipeline failed and assets were rolled back.
	StatusError BookStatus = "error"
)

// Terminal reports whether the status is final. A terminal record is never
// mutated by the pipeline again.
func (s BookStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// PageType identifies the primary media of a page.
type PageType string

const (
	PageTypeImage PageType = "image"
	PageTypeVideo PageType = "video"
)

// MediaType identifies the storage namespace an asset lives under.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaSound MediaType = "sound"
)

// Dialogue is one spoken line within a page.
// AudioURL may be empty, meaning synthesis failed for that line.
type Dialogue struct {
	ID       string `json:"id"`
	Index    int    `json:"index"` // 1-based within the page
	Text     string `json:"text"`
	AudioURL string `json:"part_audio_url"`
}

// Page is one storybook page: an image or video asset plus its dialogue lines.
//
// Invariant: if Type is video, Content points to the video and FallbackImage to
// a still poster; if Type is image, Content is the image and FallbackImage is empty.
type Page struct {
	ID            string     `json:"id"`
	Index         int        `json:"index"` // 1-based, matches input ordering
	Type          PageType   `json:"type"`
	Content       string     `json:"content"`
	FallbackImage string     `json:"fallback_image,omitempty"`
	BlurHash      string     `json:"blur_hash,omitempty"`
	Dialogues     []Dialogue `json:"dialogues"`
}

// Asset is one stored file reference belonging to a page.
type Asset struct {
	URL       string
	MediaType MediaType
}

// Assets returns every asset reference this page owns, derived from the
// canonical fields. Both assembly and deletion go through this method so the
// two can never disagree about which files a page holds.
func (p *Page) Assets() []Asset {
	var assets []Asset

	switch p.Type {
	case PageTypeVideo:
		if p.Content != "" {
			assets = append(assets, Asset{URL: p.Content, MediaType: MediaVideo})
		}
		if p.FallbackImage != "" {
			assets = append(assets, Asset{URL: p.FallbackImage, MediaType: MediaImage})
		}
	default:
		if p.Content != "" {
			assets = append(assets, Asset{URL: p.Content, MediaType: MediaImage})
		}
	}

	for _, d := range p.Dialogues {
		if d.AudioURL != "" {
			assets = append(assets, Asset{URL: d.AudioURL, MediaType: MediaSound})
		}
	}

	return assets
}

// Book is one generated storybook record.
type Book struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	CoverImage string     `json:"cover_image"`
	Status     BookStatus `json:"status"`
	Pages      []Page     `json:"pages"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewBook creates an empty placeholder book in the process state.
// If existingID is non-empty it is reused, so a status update can later be
// patched onto an already-visible record.
func NewBook(existingID string) *Book {
	bookID := existingID
	if bookID == "" {
		bookID = id.MustGenerate(id.PrefixBook)
	}
	return &Book{
		ID:        bookID,
		Status:    StatusProcess,
		Pages:     []Page{},
		CreatedAt: time.Now(),
	}
}

// PlaceholderPage returns the empty image page used when a page-level
// generation task fails. Siblings proceed; the book keeps its page count.
func PlaceholderPage(index int) Page {
	return Page{
		ID:        id.MustGenerate(id.PrefixPage),
		Index:     index,
		Type:      PageTypeImage,
		Content:   "",
		Dialogues: []Dialogue{},
	}
}
