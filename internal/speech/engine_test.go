package speech

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/errors"
	"github.com/moriai/storybook-server/internal/logger"
)

// fakeSynth is a scriptable Synthesizer. failOn marks texts that error.
type fakeSynth struct {
	mu       sync.Mutex
	calls    int
	inFlight int64
	maxSeen  int64
	failOn   map[string]bool
	delay    time.Duration
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ VoiceParams) ([]byte, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt64(&f.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt64(&f.maxSeen, prev, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failOn[text] {
		return nil, errors.Upstream(nil, "synthesis rejected")
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeSynth) Voices(context.Context) ([]Voice, error) {
	return []Voice{{ID: "v1", Name: "test", Category: "cloned"}}, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestEngine(t *testing.T, synth Synthesizer, maxConcurrent int) *Engine {
	t.Helper()

	log := logger.New(logger.Config{Environment: "production"})
	engine, err := NewEngine(synth, config.SpeechConfig{
		VoiceID:       "v1",
		ModelID:       "eleven_v3",
		Language:      "en",
		MaxConcurrent: maxConcurrent,
	}, t.TempDir(), log.Logger)
	require.NoError(t, err)
	return engine
}

func TestSynthesizeBatch_PreservesShape(t *testing.T) {
	engine := newTestEngine(t, &fakeSynth{}, 5)

	result, err := engine.SynthesizeBatch(context.Background(), [][]string{{"a", "b"}, {"c"}}, VoiceParams{})
	require.NoError(t, err)

	paths := result.Paths()
	require.Len(t, paths, 2)
	assert.Len(t, paths[0], 2)
	assert.Len(t, paths[1], 1)
	for _, group := range paths {
		for _, p := range group {
			assert.True(t, strings.HasPrefix(p, "/data/sound/"+result.BatchID+"/"))
			assert.True(t, strings.HasSuffix(p, ".mp3"))
		}
	}
	assert.Equal(t, 3, result.SuccessCount())
}

func TestSynthesizeBatch_PartialFailureKeepsShape(t *testing.T) {
	engine := newTestEngine(t, &fakeSynth{failOn: map[string]bool{"b": true}}, 5)

	result, err := engine.SynthesizeBatch(context.Background(), [][]string{{"a", "b"}, {"c"}}, VoiceParams{})
	require.NoError(t, err)

	paths := result.Paths()
	require.Len(t, paths, 2)
	assert.NotEmpty(t, paths[0][0])
	assert.Empty(t, paths[0][1])
	assert.NotEmpty(t, paths[1][0])
	assert.Equal(t, 2, result.SuccessCount())
	assert.Equal(t, 3, result.TotalCount())
}

func TestSynthesizeBatch_AllFailuresIsStillValid(t *testing.T) {
	engine := newTestEngine(t, &fakeSynth{failOn: map[string]bool{"a": true, "b": true}}, 5)

	result, err := engine.SynthesizeBatch(context.Background(), [][]string{{"a"}, {"b"}}, VoiceParams{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, 0, result.SuccessCount())
	assert.Equal(t, [][]string{{""}, {""}}, result.Paths())
}

func TestSynthesizeBatch_EmptyBatch(t *testing.T) {
	synth := &fakeSynth{}
	engine := newTestEngine(t, synth, 5)

	result, err := engine.SynthesizeBatch(context.Background(), [][]string{}, VoiceParams{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Empty(t, result.Paths())
	assert.Zero(t, synth.callCount())
}

func TestSynthesizeBatch_AdmissionGateBoundsConcurrency(t *testing.T) {
	synth := &fakeSynth{delay: 20 * time.Millisecond}
	engine := newTestEngine(t, synth, 2)

	texts := [][]string{{"a", "b", "c"}, {"d", "e", "f"}, {"g", "h"}}
	_, err := engine.SynthesizeBatch(context.Background(), texts, VoiceParams{})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt64(&synth.maxSeen), int64(2))
	assert.Equal(t, 8, synth.callCount())
}

func TestSynthesizeBatch_PathForMatchesTags(t *testing.T) {
	engine := newTestEngine(t, &fakeSynth{failOn: map[string]bool{"c": true}}, 5)

	result, err := engine.SynthesizeBatch(context.Background(), [][]string{{"a"}, {"c", "d"}}, VoiceParams{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.PathFor(0, 0))
	assert.Empty(t, result.PathFor(1, 0))
	assert.NotEmpty(t, result.PathFor(1, 1))
	assert.Empty(t, result.PathFor(9, 9))
}

func TestSynthesizeWord_CacheIdempotence(t *testing.T) {
	synth := &fakeSynth{}
	engine := newTestEngine(t, synth, 5)
	ctx := context.Background()

	first, err := engine.SynthesizeWord(ctx, "cat")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.NotNil(t, first.DurationMS)
	assert.Equal(t, 1, synth.callCount())

	second, err := engine.SynthesizeWord(ctx, "cat")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Nil(t, second.DurationMS)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Equal(t, 1, synth.callCount())
}

func TestSynthesizeWord_KeyNormalization(t *testing.T) {
	synth := &fakeSynth{}
	engine := newTestEngine(t, synth, 5)
	ctx := context.Background()

	first, err := engine.SynthesizeWord(ctx, "Cat")
	require.NoError(t, err)

	second, err := engine.SynthesizeWord(ctx, "cat")
	require.NoError(t, err)

	assert.Equal(t, first.FilePath, second.FilePath)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, synth.callCount())
}

func TestSynthesizeWord_Validation(t *testing.T) {
	engine := newTestEngine(t, &fakeSynth{}, 5)
	ctx := context.Background()

	cases := []struct {
		name string
		word string
	}{
		{"path traversal", "../etc"},
		{"dot", "a.b"},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"blank", "   "},
		{"empty", ""},
		{"too long", strings.Repeat("x", 51)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.SynthesizeWord(ctx, tc.word)
			assert.True(t, errors.Is(err, errors.ErrValidation), "expected validation error, got %v", err)
		})
	}

	// Exactly 50 characters is allowed.
	_, err := engine.SynthesizeWord(ctx, strings.Repeat("x", 50))
	assert.NoError(t, err)
}
