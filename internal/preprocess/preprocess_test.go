package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
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

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestImage_ShapeAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 5), B: 200, A: 255})
		}
	}

	tensor, err := Image(encodePNG(t, img), Size{Height: 224, Width: 224})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape)
	require.Len(t, tensor.Data, 224*224*3)
	for i, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %f", i, v)
		}
	}
}

func TestImage_HeightWidthOrder(t *testing.T) {
	img := solidRGBA(40, 40, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	tensor, err := Image(encodePNG(t, img), Size{Height: 12, Width: 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 12, 30, 3}, tensor.Shape)
	assert.Len(t, tensor.Data, 12*30*3)
}

func TestImage_SolidColourIsPreserved(t *testing.T) {
	img := solidRGBA(20, 20, color.RGBA{R: 255, G: 0, B: 51, A: 255})

	tensor, err := Image(encodePNG(t, img), Size{Height: 8, Width: 8})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, tensor.Data[0], 0.01)
	assert.InDelta(t, 0.0, tensor.Data[1], 0.01)
	assert.InDelta(t, 0.2, tensor.Data[2], 0.01)
}

func TestImage_AlphaIsDiscarded(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 64})
		}
	}

	tensor, err := Image(encodePNG(t, img), Size{Height: 4, Width: 4})
	require.NoError(t, err)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 0.01)
	}
}

func TestImage_Grayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 102
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	tensor, err := Image(buf.Bytes(), Size{Height: 5, Width: 5})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5, 5, 3}, tensor.Shape)
	assert.InDelta(t, tensor.Data[0], tensor.Data[1], 1e-6)
	assert.InDelta(t, tensor.Data[1], tensor.Data[2], 1e-6)
	assert.InDelta(t, 0.4, tensor.Data[0], 0.02)
}

func TestImage_DecodeError(t *testing.T) {
	_, err := Image([]byte("definitely not an image"), DefaultSize)
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.ErrorIs(t, err, image.ErrFormat)
}

func TestImage_InvalidSize(t *testing.T) {
	img := solidRGBA(4, 4, color.RGBA{A: 255})
	_, err := Image(encodePNG(t, img), Size{Height: 0, Width: 10})
	assert.Error(t, err)
}
