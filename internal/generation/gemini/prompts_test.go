package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStoryPrompt(t *testing.T) {
	prompt, err := renderStoryPrompt([]string{"went to the pool", "ate lunch"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "* went to the pool")
	assert.Contains(t, prompt, "* ate lunch")
	assert.Contains(t, prompt, `"stories"`)
}

func TestRenderImagePrompt_KnownStyle(t *testing.T) {
	prompt, err := renderImagePrompt([]string{"Splash, splash!"}, StyleWatercolor)
	require.NoError(t, err)

	assert.Contains(t, prompt, stylePrompts[StyleWatercolor])
	assert.Contains(t, prompt, "Splash, splash!")
	assert.Contains(t, prompt, "Only one image per story.")
}

func TestRenderImagePrompt_UnknownStyleFallsBackToCartoon(t *testing.T) {
	prompt, err := renderImagePrompt([]string{"line"}, "oil-on-canvas")
	require.NoError(t, err)

	assert.Contains(t, prompt, stylePrompts[StyleCartoon])
}

func TestRenderVideoPrompt(t *testing.T) {
	prompt, err := renderVideoPrompt([]string{"one", "two"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "* one")
	assert.Contains(t, prompt, "* two")
}
