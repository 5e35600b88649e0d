// internal/preprocess/preprocess.go
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the number of colour channels fed to every model (RGB).
const Channels = 3

// Size is a model input size. Height comes first, matching the
// target_size field of the model config.
type Size struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// DefaultSize is used when a model config entry has no target_size.
var DefaultSize = Size{Height: 224, Width: 224}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Height > 0 && s.Width > 0
}

// Tensor is a dense float32 tensor in NHWC layout.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// DecodeError is returned when the uploaded bytes are not a supported image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Image decodes raw image bytes and converts them to a (1, H, W, 3) tensor with
// values scaled to [0, 1].
func Image(data []byte, size Size) (*Tensor, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid target size %s", size)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	// resize.Resize takes width before height.
	resized := resize.Resize(uint(size.Width), uint(size.Height), toRGB(img), resize.Bicubic)

	h, w := size.Height, size.Width
	out := make([]float32, h*w*Channels)
	b := resized.Bounds()
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(resized.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			out[i] = float32(c.R) / 255.0
			out[i+1] = float32(c.G) / 255.0
			out[i+2] = float32(c.B) / 255.0
			i += Channels
		}
	}

	return &Tensor{
		Shape: []int64{1, int64(h), int64(w), Channels},
		Data:  out,
	}, nil
}

// toRGB drops the alpha channel, keeping the straight (non-premultiplied)
// colour values, and returns an opaque image. Grayscale becomes R=G=B.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}
