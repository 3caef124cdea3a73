// Package speech synthesizes spoken audio for storybook dialogue.
//
// Two implementations of Batcher exist: Engine runs synthesis in-process
// against a Synthesizer API client, and Client forwards the batch to a
// separate TTS service. Config selects which one the pipeline gets.
package speech

import "context"

// VoiceParams carries per-request synthesis settings. Zero-value fields fall
// back to the engine's configured defaults.
type VoiceParams struct {
	VoiceID         string
	ModelID         string
	Language        string
	Stability       float64
	SimilarityBoost float64
	Style           float64
}

// Voice describes one available synthesis voice.
type Voice struct {
	ID          string `json:"voice_id"`
	Name        string `json:"voice_label"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// LineResult is one synthesized line, tagged with its position in the input.
// Tagging (rather than positional alignment) means a consumer can never zip
// results against the wrong line.
type LineResult struct {
	Page int    `json:"page"` // 0-based sublist index
	Line int    `json:"line"` // 0-based index within the sublist
	Path string `json:"path"` // empty means synthesis failed for this line
}

// BatchResult is the outcome of one batch synthesis run. A batch where every
// line failed is still a valid, non-error result.
type BatchResult struct {
	BatchID string
	Shape   []int // input sublist lengths, recorded before flattening
	Lines   []LineResult
}

// Paths reassembles the nested input shape from the tagged results, with an
// empty string at every failed position.
func (r *BatchResult) Paths() [][]string {
	nested := make([][]string, len(r.Shape))
	for i, n := range r.Shape {
		nested[i] = make([]string, n)
	}
	for _, ln := range r.Lines {
		if ln.Page >= 0 && ln.Page < len(nested) && ln.Line >= 0 && ln.Line < len(nested[ln.Page]) {
			nested[ln.Page][ln.Line] = ln.Path
		}
	}
	return nested
}

// PathFor returns the audio path tagged with the given position, or "".
func (r *BatchResult) PathFor(page, line int) string {
	for _, ln := range r.Lines {
		if ln.Page == page && ln.Line == line {
			return ln.Path
		}
	}
	return ""
}

// TotalCount returns the number of lines in the batch.
func (r *BatchResult) TotalCount() int {
	return len(r.Lines)
}

// SuccessCount returns the number of lines that produced audio.
func (r *BatchResult) SuccessCount() int {
	n := 0
	for _, ln := range r.Lines {
		if ln.Path != "" {
			n++
		}
	}
	return n
}

// WordResult is the outcome of a cached single-word synthesis.
// DurationMS is nil on a cache hit, where no synthesis happened.
type WordResult struct {
	Word       string `json:"word"`
	FilePath   string `json:"file_path"`
	Cached     bool   `json:"cached"`
	DurationMS *int64 `json:"duration_ms"`
}

// Batcher is the batch synthesis capability the pipeline consumes.
type Batcher interface {
	SynthesizeBatch(ctx context.Context, texts [][]string, params VoiceParams) (*BatchResult, error)
}

// Synthesizer is the low-level speech model boundary: one text in, encoded
// audio out. Implemented by the ElevenLabs API client; tests use fakes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params VoiceParams) ([]byte, error)
	Voices(ctx context.Context) ([]Voice, error)
}
