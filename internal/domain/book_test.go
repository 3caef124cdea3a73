package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusProcess.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestNewBook_GeneratesID(t *testing.T) {
	book := NewBook("")

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, StatusProcess, book.Status)
	assert.Empty(t, book.Pages)
	assert.False(t, book.CreatedAt.IsZero())
}

func TestNewBook_ReusesExistingID(t *testing.T) {
	book := NewBook("book-existing")

	assert.Equal(t, "book-existing", book.ID)
}

func TestPageAssets_VideoPage(t *testing.T) {
	page := Page{
		Type:          PageTypeVideo,
		Content:       "/data/video/book-1/page_1.mp4",
		FallbackImage: "/data/image/book-1/page_1.png",
		Dialogues: []Dialogue{
			{Index: 1, Text: "hello", AudioURL: "/data/sound/batch-1/a.mp3"},
			{Index: 2, Text: "silent", AudioURL: ""},
		},
	}

	assets := page.Assets()

	assert.Equal(t, []Asset{
		{URL: "/data/video/book-1/page_1.mp4", MediaType: MediaVideo},
		{URL: "/data/image/book-1/page_1.png", MediaType: MediaImage},
		{URL: "/data/sound/batch-1/a.mp3", MediaType: MediaSound},
	}, assets)
}

func TestPageAssets_ImagePage(t *testing.T) {
	page := Page{
		Type:    PageTypeImage,
		Content: "/data/image/book-1/page_2.png",
	}

	assets := page.Assets()

	assert.Equal(t, []Asset{
		{URL: "/data/image/book-1/page_2.png", MediaType: MediaImage},
	}, assets)
}

func TestPageAssets_PlaceholderPageHasNone(t *testing.T) {
	page := PlaceholderPage(3)

	assert.Equal(t, 3, page.Index)
	assert.Equal(t, PageTypeImage, page.Type)
	assert.Empty(t, page.Assets())
}
