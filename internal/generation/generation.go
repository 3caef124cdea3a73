// Package generation defines the capability interfaces consumed by the book
// pipeline. The concrete gemini subpackage implements them; tests substitute
// small fakes.
package generation

import "context"

// SourceImage is one uploaded page photo used to seed illustration generation.
type SourceImage struct {
	Filename string
	Data     []byte
	MimeType string
}

// ScriptGenerator turns raw per-page diary entries into dialogue lines.
// The result is one slice of lines per page, bounded by maxPages pages and
// maxLinesPerPage lines each. An empty result (without error) means the model
// produced nothing usable.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, entries []string, maxPages, maxLinesPerPage int) ([][]string, error)
}

// ImageGenerator renders a page illustration from a source photo and the
// page's dialogue lines. Returns PNG bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, source SourceImage, lines []string) ([]byte, error)
}

// VideoGenerator animates a still page illustration into a short clip.
// Implementations block until the long-running operation completes.
// Returns MP4 bytes.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, still []byte, lines []string) ([]byte, error)
}
