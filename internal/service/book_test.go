package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriai/storybook-server/internal/config"
	"github.com/moriai/storybook-server/internal/domain"
	"github.com/moriai/storybook-server/internal/errors"
	"github.com/moriai/storybook-server/internal/generation"
	"github.com/moriai/storybook-server/internal/logger"
	"github.com/moriai/storybook-server/internal/speech"
	"github.com/moriai/storybook-server/internal/storage"
	"github.com/moriai/storybook-server/internal/store"
)

// fakeGenerator scripts all three generation capabilities.
type fakeGenerator struct {
	script      [][]string
	scriptErr   error
	failImageOn map[int]bool // page index -> fail illustration
	failVideo   bool
	onVideo     func() // called once per video attempt, before failing/succeeding

	mu         sync.Mutex
	imageCalls int
}

func (f *fakeGenerator) GenerateScript(context.Context, []string, int, int) ([][]string, error) {
	return f.script, f.scriptErr
}

func (f *fakeGenerator) GenerateImage(_ context.Context, _ generation.SourceImage, _ []string) ([]byte, error) {
	f.mu.Lock()
	idx := f.imageCalls
	f.imageCalls++
	f.mu.Unlock()

	if f.failImageOn[idx] {
		return nil, errors.Upstream(nil, "illustration rejected")
	}
	return testPNG(), nil
}

func (f *fakeGenerator) GenerateVideo(context.Context, []byte, []string) ([]byte, error) {
	if f.onVideo != nil {
		f.onVideo()
	}
	if f.failVideo {
		return nil, errors.Upstream(nil, "video rejected")
	}
	return []byte("mp4-bytes"), nil
}

// fakeBatcher returns canned nested paths, or an error.
type fakeBatcher struct {
	err  error
	wait <-chan struct{} // optional: block until closed before returning
}

func (f *fakeBatcher) SynthesizeBatch(_ context.Context, texts [][]string, _ speech.VoiceParams) (*speech.BatchResult, error) {
	if f.wait != nil {
		<-f.wait
	}
	if f.err != nil {
		return nil, f.err
	}

	result := &speech.BatchResult{BatchID: "batch-test", Shape: make([]int, len(texts))}
	for p, group := range texts {
		result.Shape[p] = len(group)
		for l := range group {
			result.Lines = append(result.Lines, speech.LineResult{
				Page: p, Line: l,
				Path: fmt.Sprintf("/data/sound/batch-test/%d_%d.mp3", p, l),
			})
		}
	}
	return result, nil
}

var (
	pngOnce  sync.Once
	pngBytes []byte
)

func testPNG() []byte {
	pngOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for i := 0; i < 8; i++ {
			img.Set(i, i, color.RGBA{R: 200, A: 255})
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			panic(err)
		}
		pngBytes = buf.Bytes()
	})
	return pngBytes
}

func sources(n int) []generation.SourceImage {
	out := make([]generation.SourceImage, n)
	for i := range out {
		out[i] = generation.SourceImage{
			Filename: fmt.Sprintf("photo_%d.jpg", i+1),
			Data:     testPNG(),
			MimeType: "image/png",
		}
	}
	return out
}

func newTestService(t *testing.T, gen Generator, batcher speech.Batcher) (*BookService, *storage.Service) {
	t.Helper()

	log := logger.New(logger.Config{Environment: "production"})

	dir := t.TempDir()
	assets, err := storage.NewService(
		filepath.Join(dir, "image"), filepath.Join(dir, "video"), filepath.Join(dir, "sound"), log.Logger)
	require.NoError(t, err)

	st, err := store.New(filepath.Join(dir, "book"), log.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := store.NewBookRepository(st, log.Logger)
	require.NoError(t, repo.InitializeCache(context.Background()))

	svc, err := NewBookService(repo, assets, gen, batcher, config.GenerationConfig{
		MaxLinesPerPage:    3,
		MaxConcurrentPages: 2,
	}, log.Logger)
	require.NoError(t, err)
	return svc, assets
}

func TestCreateWithGeneration_InputValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{}, &fakeBatcher{})
	ctx := context.Background()

	_, err := svc.CreateWithGeneration(ctx, nil, nil, "")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = svc.CreateWithGeneration(ctx, []string{"a", "b"}, sources(1), "")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestCreateWithGeneration_HappyPath(t *testing.T) {
	gen := &fakeGenerator{script: [][]string{{"Good morning!", "Splash!"}, {"Good night."}}}
	svc, assets := newTestService(t, gen, &fakeBatcher{})

	book, err := svc.CreateWithGeneration(context.Background(), []string{"pool day", "bed time"}, sources(2), "book-h1")
	require.NoError(t, err)

	assert.Equal(t, "book-h1", book.ID)
	assert.Equal(t, domain.StatusSuccess, book.Status)
	require.Len(t, book.Pages, 2)

	first := book.Pages[0]
	assert.Equal(t, domain.PageTypeVideo, first.Type)
	assert.True(t, assets.Exists(first.Content, domain.MediaVideo))
	assert.True(t, assets.Exists(first.FallbackImage, domain.MediaImage))
	assert.NotEmpty(t, first.BlurHash)

	// Video first page: cover is the poster still, not the clip.
	assert.Equal(t, first.FallbackImage, book.CoverImage)

	require.Len(t, first.Dialogues, 2)
	assert.Equal(t, 1, first.Dialogues[0].Index)
	assert.Equal(t, "Good morning!", first.Dialogues[0].Text)
	assert.Equal(t, "/data/sound/batch-test/0_0.mp3", first.Dialogues[0].AudioURL)
	assert.Equal(t, "/data/sound/batch-test/1_0.mp3", book.Pages[1].Dialogues[0].AudioURL)
}

func TestCreateWithGeneration_VideoFailureDowngradesToImagePage(t *testing.T) {
	gen := &fakeGenerator{script: [][]string{{"line"}}, failVideo: true}
	svc, assets := newTestService(t, gen, &fakeBatcher{})

	book, err := svc.CreateWithGeneration(context.Background(), []string{"a"}, sources(1), "")
	require.NoError(t, err)

	require.Len(t, book.Pages, 1)
	page := book.Pages[0]
	assert.Equal(t, domain.PageTypeImage, page.Type)
	assert.Empty(t, page.FallbackImage)
	assert.True(t, assets.Exists(page.Content, domain.MediaImage))
	assert.Equal(t, page.Content, book.CoverImage)
	assert.Equal(t, domain.StatusSuccess, book.Status)
}

func TestCreateWithGeneration_PageFailureIsIsolated(t *testing.T) {
	gen := &fakeGenerator{
		script:      [][]string{{"one"}, {"two"}, {"three"}},
		failImageOn: map[int]bool{1: true},
	}
	svc, _ := newTestService(t, gen, &fakeBatcher{})

	book, err := svc.CreateWithGeneration(context.Background(), []string{"a", "b", "c"}, sources(3), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, book.Status)
	require.Len(t, book.Pages, 3)

	var placeholders int
	for _, page := range book.Pages {
		if page.Content == "" {
			placeholders++
			assert.Equal(t, domain.PageTypeImage, page.Type)
			// Dialogue lines and audio survive even on a placeholder page.
			assert.Len(t, page.Dialogues, 1)
		}
	}
	assert.Equal(t, 1, placeholders)
}

func TestCreateWithGeneration_EmptyScriptFinalizesError(t *testing.T) {
	gen := &fakeGenerator{script: [][]string{}}
	svc, _ := newTestService(t, gen, &fakeBatcher{})

	book, err := svc.CreateWithGeneration(context.Background(), []string{"a"}, sources(1), "book-e1")
	require.NoError(t, err)

	assert.Equal(t, "book-e1", book.ID)
	assert.Equal(t, domain.StatusError, book.Status)
	assert.Empty(t, book.Pages)
}

func TestCreateWithGeneration_FatalErrorRollsBackAssets(t *testing.T) {
	uploaded := make(chan struct{})
	var once sync.Once

	gen := &fakeGenerator{
		script:    [][]string{{"line"}},
		failVideo: true,
		// By the time a video is attempted the page illustration is on disk.
		onVideo: func() { once.Do(func() { close(uploaded) }) },
	}
	batcher := &fakeBatcher{err: errors.Storage(nil, "batch directory unavailable"), wait: uploaded}
	svc, assets := newTestService(t, gen, batcher)

	book, err := svc.CreateWithGeneration(context.Background(), []string{"a"}, sources(1), "book-r1")
	require.Error(t, err)

	assert.Equal(t, domain.StatusError, book.Status)
	assert.False(t, assets.Exists("/data/image/book-r1/page_1.png", domain.MediaImage))
}

func TestCreateWithGeneration_NeverReturnsProcess(t *testing.T) {
	cases := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"happy", &fakeGenerator{script: [][]string{{"x"}}}},
		{"empty script", &fakeGenerator{script: nil}},
		{"script error", &fakeGenerator{scriptErr: errors.Upstream(nil, "model down")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, tc.gen, &fakeBatcher{})
			book, _ := svc.CreateWithGeneration(context.Background(), []string{"a"}, sources(1), "")
			require.NotNil(t, book)
			assert.True(t, book.Status.Terminal(), "status %q is not terminal", book.Status)
		})
	}
}

func TestDeleteBook_RemovesAssetsAndRecord(t *testing.T) {
	gen := &fakeGenerator{script: [][]string{{"line"}}}
	svc, assets := newTestService(t, gen, &fakeBatcher{})
	ctx := context.Background()

	book, err := svc.CreateWithGeneration(ctx, []string{"a"}, sources(1), "")
	require.NoError(t, err)
	_, err = svc.repo.Create(ctx, book)
	require.NoError(t, err)

	page := book.Pages[0]
	require.True(t, assets.Exists(page.Content, domain.MediaVideo))

	require.NoError(t, svc.DeleteBook(ctx, book.ID))

	assert.False(t, assets.Exists(page.Content, domain.MediaVideo))
	assert.False(t, assets.Exists(page.FallbackImage, domain.MediaImage))
	_, err = svc.GetBook(ctx, book.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDeleteBook_UnknownIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{}, &fakeBatcher{})
	err := svc.DeleteBook(context.Background(), "book-ghost")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
