// internal/predict/service.go
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/crop-disease-service/internal/cache"
	"github.com/SyedDaiam9101/crop-disease-service/internal/crop"
	"github.com/SyedDaiam9101/crop-disease-service/internal/metrics"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
	"github.com/SyedDaiam9101/crop-disease-service/internal/registry"
)

const tracerName = "github.com/SyedDaiam9101/crop-disease-service/internal/predict"

var (
	// ErrInvalidContentType means the upload was not declared as an image.
	ErrInvalidContentType = errors.New("file must be an image")
	// ErrUnknownCrop means the crop routed to a model key that is not loaded.
	ErrUnknownCrop = errors.New("no model available for crop")
	// ErrEmptyOutput means the model produced no scores.
	ErrEmptyOutput = errors.New("model returned no scores")
	// ErrLabelMismatch means the winning class index has no label, i.e. the
	// label file is shorter than the model output.
	ErrLabelMismatch = errors.New("predicted class has no label")
	// ErrNonFiniteScore means the winning score is NaN or infinite.
	ErrNonFiniteScore = errors.New("model returned a non-finite score")
)

// Request is a single prediction call.
type Request struct {
	Crop        string
	ContentType string
	Image       []byte
}

// Result is the outcome of a prediction.
type Result struct {
	Crop             string  `json:"crop"`
	ModelUsed        string  `json:"model_used"`
	PredictedDisease string  `json:"predicted_disease"`
	Confidence       float64 `json:"confidence"`
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Key        string          `json:"key"`
	TargetSize preprocess.Size `json:"target_size"`
	Classes    int             `json:"classes"`
}

// Cache stores prediction results keyed by model and image bytes.
type Cache interface {
	Get(ctx context.Context, model string, image []byte) (*cache.Prediction, error)
	Set(ctx context.Context, model string, image []byte, p cache.Prediction) error
}

// Service routes a request to a model, preprocesses the image and runs
// inference. It holds no mutable state and is safe for concurrent use.
type Service struct {
	registry *registry.Registry
	cache    Cache
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over a loaded registry.
func NewService(reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models lists the loaded models in key order.
func (s *Service) Models() []ModelInfo {
	keys := s.registry.Keys()
	out := make([]ModelInfo, 0, len(keys))
	for _, k := range keys {
		e, _ := s.registry.Get(k)
		out = append(out, ModelInfo{Key: k, TargetSize: e.TargetSize, Classes: len(e.Labels)})
	}
	return out
}

// Predict classifies the uploaded image with the model chosen for req.Crop.
// Confidence is the model's raw score for the winning class, rounded to four
// decimals. No softmax is applied, so it is only a probability when the model's
// last layer already produces one.
func (s *Service) Predict(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "predict")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, fmt.Errorf("%w: got content type %q", ErrInvalidContentType, req.ContentType)
	}

	key := crop.ChooseModelKey(req.Crop)
	span.SetAttributes(attribute.String("crop", req.Crop), attribute.String("model", key))

	entry, ok := s.registry.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w '%s' (model %q is not loaded)", ErrUnknownCrop, req.Crop, key)
	}

	if cached := s.lookup(ctx, key, req.Image); cached != nil {
		return &Result{
			Crop:             req.Crop,
			ModelUsed:        key,
			PredictedDisease: cached.Label,
			Confidence:       cached.Confidence,
		}, nil
	}

	tensor, err := s.preprocess(ctx, req.Image, entry.TargetSize)
	if err != nil {
		return nil, err
	}

	scores, err := s.infer(ctx, entry, tensor)
	if err != nil {
		return nil, err
	}

	idx := argmax(scores)
	if idx < 0 {
		return nil, fmt.Errorf("%w (model %q)", ErrEmptyOutput, key)
	}
	if idx >= len(entry.Labels) {
		return nil, fmt.Errorf("%w: index %d, model %q has %d labels for %d outputs",
			ErrLabelMismatch, idx, key, len(entry.Labels), len(scores))
	}

	if score := float64(scores[idx]); math.IsNaN(score) || math.IsInf(score, 0) {
		return nil, fmt.Errorf("%w: %v at index %d (model %q)", ErrNonFiniteScore, score, idx, key)
	}

	res = &Result{
		Crop:             req.Crop,
		ModelUsed:        key,
		PredictedDisease: entry.Labels[idx],
		Confidence:       round4(float64(scores[idx])),
	}
	metrics.RecordPrediction(key, res.PredictedDisease)
	s.store(ctx, key, req.Image, res)

	return res, nil
}

func (s *Service) preprocess(ctx context.Context, image []byte, size preprocess.Size) (*preprocess.Tensor, error) {
	_, span := s.tracer.Start(ctx, "preprocess")
	defer span.End()

	span.SetAttributes(attribute.Int("bytes", len(image)), attribute.String("target_size", size.String()))
	tensor, err := preprocess.Image(image, size)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return tensor, nil
}

func (s *Service) infer(ctx context.Context, entry *registry.Entry, tensor *preprocess.Tensor) ([]float32, error) {
	_, span := s.tracer.Start(ctx, "inference")
	defer span.End()

	start := time.Now()
	scores, err := entry.Engine.Predict(tensor.Data, tensor.Shape)
	metrics.RecordInferenceLatency(entry.Key, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("model %q: %w", entry.Key, err)
	}
	return scores, nil
}

func (s *Service) lookup(ctx context.Context, key string, image []byte) *cache.Prediction {
	if s.cache == nil {
		return nil
	}
	p, err := s.cache.Get(ctx, key, image)
	switch {
	case err != nil:
		metrics.RecordCacheResult("error")
		s.logger.Warn("Prediction cache lookup failed", zap.String("model", key), zap.Error(err))
		return nil
	case p == nil:
		metrics.RecordCacheResult("miss")
		return nil
	default:
		metrics.RecordCacheResult("hit")
		return p
	}
}

func (s *Service) store(ctx context.Context, key string, image []byte, res *Result) {
	if s.cache == nil {
		return
	}
	p := cache.Prediction{Label: res.PredictedDisease, Confidence: res.Confidence}
	if err := s.cache.Set(ctx, key, image, p); err != nil {
		s.logger.Warn("Prediction cache store failed", zap.String("model", key), zap.Error(err))
	}
}

// argmax returns the index of the first maximum, or -1 for an empty slice.
// The output of a (1, C) model flattens to C scores, so no squeeze is needed.
func argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i, v := range scores[1:] {
		if v > scores[best] {
			best = i + 1
		}
	}
	return best
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
