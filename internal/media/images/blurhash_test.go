package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComputeBlurHash(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	hash, err := ComputeBlurHash(encodePNG(t, img))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_InvalidBytes(t *testing.T) {
	_, err := ComputeBlurHash([]byte("not an image"))
	assert.Error(t, err)
}

func TestResizeForBlurHash_KeepsSmallImages(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 32, 32))
	assert.Equal(t, small.Bounds(), resizeForBlurHash(small).Bounds())
}

func TestResizeForBlurHash_PreservesAspectRatio(t *testing.T) {
	wide := image.NewRGBA(image.Rect(0, 0, 640, 160))
	resized := resizeForBlurHash(wide)

	assert.Equal(t, 64, resized.Bounds().Dx())
	assert.Equal(t, 16, resized.Bounds().Dy())
}
