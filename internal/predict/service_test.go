package predict

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/crop-disease-service/internal/cache"
	"github.com/SyedDaiam9101/crop-disease-service/internal/inference"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
	"github.com/SyedDaiam9101/crop-disease-service/internal/registry"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 30, G: 160, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRegistry(t *testing.T, entries ...*registry.Entry) *registry.Registry {
	t.Helper()
	reg, err := registry.New(entries...)
	require.NoError(t, err)
	return reg
}

func riceEntry(engine inference.Engine) *registry.Entry {
	return &registry.Entry{
		Key:        "rice",
		Engine:     engine,
		Labels:     []string{"healthy", "blast", "brown_spot"},
		TargetSize: preprocess.Size{Height: 32, Width: 48},
	}
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	items  map[string]cache.Prediction
	getErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string]cache.Prediction{}}
}

func (f *fakeCache) Get(_ context.Context, model string, image []byte) (*cache.Prediction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.items[cache.Key(model, image)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCache) Set(_ context.Context, model string, image []byte, p cache.Prediction) error {
	f.sets++
	f.items[cache.Key(model, image)] = p
	return nil
}

func TestPredict_RoutesToRiceModel(t *testing.T) {
	engine := inference.NewMockWithScores([]float32{0.01, 0.87654321, 0.12345679})
	svc := NewService(testRegistry(t,
		riceEntry(engine),
		&registry.Entry{Key: "plant", Engine: inference.NewMock(), Labels: []string{"a", "b", "c"}, TargetSize: preprocess.DefaultSize},
	))

	res, err := svc.Predict(context.Background(), Request{
		Crop:        "Rice Paddy",
		ContentType: "image/png",
		Image:       testPNG(t, 100, 50),
	})
	require.NoError(t, err)

	assert.Equal(t, "Rice Paddy", res.Crop)
	assert.Equal(t, "rice", res.ModelUsed)
	assert.Equal(t, "blast", res.PredictedDisease)
	assert.Equal(t, 0.8765, res.Confidence)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)

	assert.Equal(t, 1, engine.CallCount)
	assert.Equal(t, []int64{1, 32, 48, 3}, engine.LastShape)
}

func TestPredict_FallsBackToPlant(t *testing.T) {
	plant := inference.NewMockWithScores([]float32{0.9, 0.1})
	svc := NewService(testRegistry(t,
		riceEntry(inference.NewMock()),
		&registry.Entry{Key: "plant", Engine: plant, Labels: []string{"healthy", "rust"}, TargetSize: preprocess.Size{Height: 8, Width: 8}},
	))

	res, err := svc.Predict(context.Background(), Request{Crop: "tomato", ContentType: "image/png", Image: testPNG(t, 10, 10)})
	require.NoError(t, err)
	assert.Equal(t, "plant", res.ModelUsed)
	assert.Equal(t, "healthy", res.PredictedDisease)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestPredict_InvalidContentType(t *testing.T) {
	engine := inference.NewMock()
	svc := NewService(testRegistry(t, riceEntry(engine)))

	for _, ct := range []string{"text/plain", "application/octet-stream", ""} {
		_, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: ct, Image: testPNG(t, 4, 4)})
		assert.ErrorIs(t, err, ErrInvalidContentType, ct)
	}
	assert.Equal(t, 0, engine.CallCount)
}

func TestPredict_UnknownCrop(t *testing.T) {
	svc := NewService(testRegistry(t, riceEntry(inference.NewMock())))

	_, err := svc.Predict(context.Background(), Request{Crop: "mango", ContentType: "image/jpeg", Image: testPNG(t, 4, 4)})
	require.ErrorIs(t, err, ErrUnknownCrop)
	assert.Contains(t, err.Error(), "'mango'")
}

func TestPredict_DecodeError(t *testing.T) {
	engine := inference.NewMock()
	svc := NewService(testRegistry(t, riceEntry(engine)))

	_, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: []byte("garbage")})
	var decodeErr *preprocess.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 0, engine.CallCount)
}

func TestPredict_LabelMismatch(t *testing.T) {
	engine := inference.NewMockWithScores([]float32{0.1, 0.2, 0.3, 0.4})
	svc := NewService(testRegistry(t, riceEntry(engine)))

	_, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: testPNG(t, 4, 4)})
	assert.ErrorIs(t, err, ErrLabelMismatch)
}

func TestPredict_EmptyOutput(t *testing.T) {
	svc := NewService(testRegistry(t, riceEntry(inference.NewMockWithScores(nil))))

	_, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: testPNG(t, 4, 4)})
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestPredict_NonFiniteScore(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	for name, scores := range map[string][]float32{
		"all nan":      {nan, nan, nan},
		"leading nan":  {nan, 0.9, 0.1},
		"positive inf": {0.1, inf, 0.2},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewService(testRegistry(t, riceEntry(inference.NewMockWithScores(scores))))

			res, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: testPNG(t, 4, 4)})
			assert.ErrorIs(t, err, ErrNonFiniteScore)
			assert.Nil(t, res)
		})
	}
}

func TestPredict_EngineError(t *testing.T) {
	engine := inference.NewMock()
	engine.SetError("inference failed: out of memory")
	svc := NewService(testRegistry(t, riceEntry(engine)))

	_, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: testPNG(t, 4, 4)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestPredict_CacheHitSkipsInference(t *testing.T) {
	engine := inference.NewMock()
	c := newFakeCache()
	svc := NewService(testRegistry(t, riceEntry(engine)), WithCache(c))
	img := testPNG(t, 6, 6)

	first, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: img})
	require.NoError(t, err)
	assert.Equal(t, 1, c.sets)

	second, err := svc.Predict(context.Background(), Request{Crop: "RICE", ContentType: "image/png", Image: img})
	require.NoError(t, err)

	assert.Equal(t, 1, engine.CallCount)
	assert.Equal(t, "RICE", second.Crop)
	assert.Equal(t, first.PredictedDisease, second.PredictedDisease)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestPredict_CacheErrorFallsThrough(t *testing.T) {
	engine := inference.NewMock()
	c := newFakeCache()
	c.getErr = errors.New("connection refused")
	svc := NewService(testRegistry(t, riceEntry(engine)), WithCache(c))

	res, err := svc.Predict(context.Background(), Request{Crop: "rice", ContentType: "image/png", Image: testPNG(t, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, "blast", res.PredictedDisease)
	assert.Equal(t, 1, engine.CallCount)
}

func TestModels(t *testing.T) {
	svc := NewService(testRegistry(t,
		riceEntry(inference.NewMock()),
		&registry.Entry{Key: "banana", Engine: inference.NewMock(), Labels: []string{"x"}, TargetSize: preprocess.DefaultSize},
	))

	assert.Equal(t, []ModelInfo{
		{Key: "banana", TargetSize: preprocess.DefaultSize, Classes: 1},
		{Key: "rice", TargetSize: preprocess.Size{Height: 32, Width: 48}, Classes: 3},
	}, svc.Models())
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, argmax(nil))
	assert.Equal(t, 0, argmax([]float32{5}))
	assert.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.9, 0.3}))
	assert.Equal(t, 1, argmax([]float32{0.1, 0.5, 0.5}))
	assert.Equal(t, 0, argmax([]float32{-1, -2, -3}))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, round4(0.123456))
	assert.Equal(t, 1.0, round4(0.99999))
	assert.Equal(t, 0.0, round4(0.00001))
}
