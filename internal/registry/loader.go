// internal/registry/loader.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/SyedDaiam9101/crop-disease-service/internal/inference"
	"github.com/SyedDaiam9101/crop-disease-service/internal/labels"
	"github.com/SyedDaiam9101/crop-disease-service/internal/metrics"
	"github.com/SyedDaiam9101/crop-disease-service/internal/preprocess"
)

// Skip reasons, also used as the reason label of models_skipped_total.
const (
	ReasonModelMissing  = "model_missing"
	ReasonLabelsMissing = "labels_missing"
	ReasonModelFailed   = "model_load_failed"
	ReasonLabelsInvalid = "labels_invalid"
	ReasonInvalidSize   = "invalid_target_size"
)

// EntryConfig is one value of the model config document.
type EntryConfig struct {
	Path       string `json:"path" yaml:"path"`
	Labels     string `json:"labels" yaml:"labels"`
	TargetSize []int  `json:"target_size,omitempty" yaml:"target_size,omitempty"`
	InputName  string `json:"input_name,omitempty" yaml:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty" yaml:"output_name,omitempty"`
}

// Skip records a config entry that was not loaded.
type Skip struct {
	Key    string
	Reason string
	Err    error
}

func (s Skip) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %s: %v", s.Key, s.Reason, s.Err)
	}
	return fmt.Sprintf("%s: %s", s.Key, s.Reason)
}

// LoadResult is the partial-success outcome of Load.
type LoadResult struct {
	Registry *Registry
	Skipped  []Skip
}

// Loader turns a model file into an inference engine.
type Loader func(path string, cfg EntryConfig) (inference.Engine, error)

// ONNXLoader returns a Loader backed by ONNX Runtime. libPath is passed to
// inference.InitEnvironment.
func ONNXLoader(libPath string) Loader {
	return func(path string, cfg EntryConfig) (inference.Engine, error) {
		if err := inference.InitEnvironment(libPath); err != nil {
			return nil, err
		}
		return inference.New(path, inference.Options{
			InputName:  cfg.InputName,
			OutputName: cfg.OutputName,
		})
	}
}

type options struct {
	loader Loader
	logger *zap.Logger
}

// Option configures Load.
type Option func(*options)

// WithLoader overrides the model loader.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger sets the logger used for per-entry messages.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Load reads the model config at configPath and loads every entry it can.
// Entries whose files are missing or fail to load are skipped and reported in
// LoadResult.Skipped. It fails with ErrConfigNotFound if the config does not
// exist and with ErrNoModelsLoaded if nothing could be loaded.
func Load(configPath string, opts ...Option) (*LoadResult, error) {
	o := options{
		loader: ONNXLoader(""),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	cfg, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		entries []*Entry
		skipped []Skip
	)
	skip := func(key, reason string, err error, fields ...zap.Field) {
		fields = append([]zap.Field{zap.String("model", key), zap.String("reason", reason)}, fields...)
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Warn("Skipping model", fields...)
		metrics.RecordModelSkipped(reason)
		skipped = append(skipped, Skip{Key: key, Reason: reason, Err: err})
	}

	for _, key := range keys {
		info := cfg[key]

		size, err := targetSize(info.TargetSize)
		if err != nil {
			skip(key, ReasonInvalidSize, err)
			continue
		}

		modelPath, ok := existingPath(info.Path)
		if !ok {
			skip(key, ReasonModelMissing, nil, zap.String("path", modelPath))
			continue
		}
		labelsPath, ok := existingPath(info.Labels)
		if !ok {
			skip(key, ReasonLabelsMissing, nil, zap.String("path", labelsPath))
			continue
		}

		engine, err := o.loader(modelPath, info)
		if err != nil {
			skip(key, ReasonModelFailed, err, zap.String("path", modelPath))
			continue
		}

		names, err := labels.Load(labelsPath)
		if err != nil {
			if cerr := engine.Close(); cerr != nil {
				log.Warn("Failed to close model", zap.String("model", key), zap.Error(cerr))
			}
			skip(key, ReasonLabelsInvalid, err, zap.String("path", labelsPath))
			continue
		}

		log.Info("Loaded model",
			zap.String("model", key),
			zap.String("path", modelPath),
			zap.Int("classes", len(names)),
			zap.Stringer("target_size", size),
		)
		entries = append(entries, &Entry{
			Key:        key,
			Engine:     engine,
			Labels:     names,
			TargetSize: size,
		})
	}

	metrics.SetModelsLoaded(len(entries))

	if len(entries) == 0 {
		return nil, ErrNoModelsLoaded
	}

	reg, err := New(entries...)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Registry: reg, Skipped: skipped}, nil
}

func readConfig(path string) (map[string]EntryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	cfg := make(map[string]EntryConfig)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse model config %s: %w", path, err)
	}
	return cfg, nil
}

// existingPath cleans p and reports whether it names an existing file.
func existingPath(p string) (string, bool) {
	if strings.TrimSpace(p) == "" {
		return p, false
	}
	p = filepath.Clean(p)
	if _, err := os.Stat(p); err != nil {
		return p, false
	}
	return p, true
}

func targetSize(v []int) (preprocess.Size, error) {
	if v == nil {
		return preprocess.DefaultSize, nil
	}
	if len(v) != 2 {
		return preprocess.Size{}, fmt.Errorf("target_size must be [height, width], got %v", v)
	}
	s := preprocess.Size{Height: v[0], Width: v[1]}
	if !s.Valid() {
		return preprocess.Size{}, fmt.Errorf("target_size must be positive, got %v", v)
	}
	return s, nil
}
