package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/unicode/norm"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/errors"
)

// maxWordLength bounds single-word synthesis input.
const maxWordLength = 50

// wordDirName is the cache directory for single-word audio, under the sound root.
const wordDirName = "word"

// Engine runs batch synthesis in-process. The admission gate is shared by
// every batch the process runs, so total in-flight synthesizer calls never
// exceed the configured limit no matter how many pipelines are active.
type Engine struct {
	synth    Synthesizer
	soundDir string
	gate     *semaphore.Weighted
	defaults VoiceParams
	logger   *slog.Logger
}

// NewEngine creates the batch speech engine.
func NewEngine(synth Synthesizer, cfg config.SpeechConfig, soundDir string, logger *slog.Logger) (*Engine, error) {
	if cfg.MaxConcurrent < 1 {
		return nil, errors.Validation("speech concurrency limit must be at least 1")
	}
	if err := os.MkdirAll(soundDir, 0755); err != nil {
		return nil, errors.Storage(err, "failed to create sound directory")
	}

	logger.Info("Speech engine initialized",
		"sound_dir", soundDir, "max_concurrent", cfg.MaxConcurrent)

	return &Engine{
		synth:    synth,
		soundDir: soundDir,
		gate:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		defaults: VoiceParams{
			VoiceID:         cfg.VoiceID,
			ModelID:         cfg.ModelID,
			Language:        cfg.Language,
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		logger: logger,
	}, nil
}

// taggedText pairs one flattened input line with its position.
type taggedText struct {
	page int
	line int
	text string
}

// SynthesizeBatch flattens the nested texts, synthesizes each line with at
// most the configured number of calls in flight, and reassembles the original
// shape. Individual failures yield empty paths without cancelling siblings.
func (e *Engine) SynthesizeBatch(ctx context.Context, texts [][]string, params VoiceParams) (*BatchResult, error) {
	batchID := uuid.NewString()

	result := &BatchResult{BatchID: batchID, Shape: make([]int, len(texts))}
	var flat []taggedText
	for p, group := range texts {
		result.Shape[p] = len(group)
		for l, text := range group {
			flat = append(flat, taggedText{page: p, line: l, text: text})
		}
	}

	if len(flat) == 0 {
		e.logger.Info("Empty speech batch", "batch_id", batchID)
		return result, nil
	}

	batchDir := filepath.Join(e.soundDir, batchID)
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		return nil, errors.Storage(err, "failed to create batch directory")
	}

	e.logger.Info("Batch synthesis started",
		"batch_id", batchID, "lines", len(flat), "shape", result.Shape)

	params = e.withDefaults(params)
	result.Lines = make([]LineResult, len(flat))

	// Every worker returns nil: a line failure degrades that position only.
	g, ctx := errgroup.WithContext(ctx)
	for i, item := range flat {
		g.Go(func() error {
			result.Lines[i] = LineResult{Page: item.page, Line: item.line}

			if err := e.gate.Acquire(ctx, 1); err != nil {
				e.logger.Warn("Batch line cancelled before admission",
					"batch_id", batchID, "page", item.page, "line", item.line, "error", err)
				return nil
			}
			defer e.gate.Release(1)

			path, err := e.synthesizeLine(ctx, batchDir, batchID, item.text, params)
			if err != nil {
				e.logger.Error("Line synthesis failed",
					"batch_id", batchID, "page", item.page, "line", item.line, "error", err)
				return nil
			}
			result.Lines[i].Path = path
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("Batch synthesis finished",
		"batch_id", batchID, "success", result.SuccessCount(), "total", result.TotalCount())

	return result, nil
}

func (e *Engine) synthesizeLine(ctx context.Context, batchDir, batchID, text string, params VoiceParams) (string, error) {
	audio, err := e.synth.Synthesize(ctx, text, params)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", errors.Upstream(nil, "synthesizer returned empty audio")
	}

	fileID := uuid.NewString()
	if err := os.WriteFile(filepath.Join(batchDir, fileID+".mp3"), audio, 0644); err != nil {
		return "", errors.Storage(err, "failed to write audio file")
	}

	return fmt.Sprintf("/data/sound/%s/%s.mp3", batchID, fileID), nil
}

// SynthesizeWord synthesizes one word with a deterministic cache key. A word
// already on disk is returned as-is with no synthesis call and no duration.
func (e *Engine) SynthesizeWord(ctx context.Context, word string) (*WordResult, error) {
	if err := validateWord(word); err != nil {
		return nil, err
	}

	key := wordKey(word)
	wordDir := filepath.Join(e.soundDir, wordDirName)
	filePath := filepath.Join(wordDir, key+".mp3")
	urlPath := fmt.Sprintf("/data/sound/%s/%s.mp3", wordDirName, key)

	if _, err := os.Stat(filePath); err == nil {
		e.logger.Info("Word cache hit", "word", word, "path", urlPath)
		return &WordResult{Word: word, FilePath: urlPath, Cached: true}, nil
	}

	if err := os.MkdirAll(wordDir, 0755); err != nil {
		return nil, errors.Storage(err, "failed to create word directory")
	}

	start := time.Now()

	if err := e.gate.Acquire(ctx, 1); err != nil {
		return nil, errors.Internal(err, "word synthesis cancelled")
	}
	audio, err := e.synth.Synthesize(ctx, word, e.defaults)
	e.gate.Release(1)
	if err != nil {
		return nil, errors.Upstream(err, "word synthesis failed: %q", word)
	}
	if len(audio) == 0 {
		return nil, errors.Upstream(nil, "synthesizer returned empty audio for %q", word)
	}

	if err := os.WriteFile(filePath, audio, 0644); err != nil {
		return nil, errors.Storage(err, "failed to write word audio")
	}

	duration := time.Since(start).Milliseconds()
	e.logger.Info("Word synthesized", "word", word, "path", urlPath, "duration_ms", duration)

	return &WordResult{Word: word, FilePath: urlPath, Cached: false, DurationMS: &duration}, nil
}

// Voices lists the synthesizer's available voices.
func (e *Engine) Voices(ctx context.Context) ([]Voice, error) {
	return e.synth.Voices(ctx)
}

func (e *Engine) withDefaults(params VoiceParams) VoiceParams {
	if params.VoiceID == "" {
		params.VoiceID = e.defaults.VoiceID
	}
	if params.ModelID == "" {
		params.ModelID = e.defaults.ModelID
	}
	if params.Language == "" {
		params.Language = e.defaults.Language
	}
	if params.Stability == 0 {
		params.Stability = e.defaults.Stability
	}
	if params.SimilarityBoost == 0 {
		params.SimilarityBoost = e.defaults.SimilarityBoost
	}
	return params
}

// validateWord rejects words that cannot form a safe cache key.
func validateWord(word string) error {
	if strings.TrimSpace(word) == "" {
		return errors.Validation("word cannot be blank")
	}
	if utf8.RuneCountInString(word) > maxWordLength {
		return errors.Validation("word exceeds %d characters", maxWordLength)
	}
	if strings.ContainsAny(word, `./\`) {
		return errors.Validation("word contains path characters")
	}
	return nil
}

// wordKey derives the deterministic cache key: NFC-normalized, lowercased.
// "Cat" and "cat" share one cached file.
func wordKey(word string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(word)))
}
