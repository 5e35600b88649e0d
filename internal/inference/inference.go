// internal/inference/inference.go
package inference

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// InitEnvironment initializes the process-wide ONNX Runtime environment.
// libPath points at libonnxruntime; empty uses the platform default.
// Calling it again after a successful initialization is a no-op.
func InitEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// DestroyEnvironment tears down the ONNX Runtime environment. All sessions
// must be closed first.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// EnvironmentInitialized reports whether the ONNX Runtime environment is live.
func EnvironmentInitialized() bool {
	envMu.Lock()
	defer envMu.Unlock()
	return ort.IsInitialized()
}

// Options selects the graph tensors to bind. Empty names pick the model's
// first input and first output.
type Options struct {
	InputName  string
	OutputName string
}

// Inference wraps an ONNX runtime session for thread-safe inference.
// It implements the Engine interface.
type Inference struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputName  string
	outputShape ort.Shape
}

// New loads the ONNX model at modelPath. InitEnvironment must have been called.
func New(modelPath string, opts Options) (*Inference, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("ONNX environment is not initialized")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}

	in, err := pickTensor(inputs, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := pickTensor(outputs, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}

	outputShape, err := batchOneShape(out.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", out.Name, err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{in.Name},
		[]string{out.Name},
		nil, // Use default session options
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Inference{
		session:     session,
		inputName:   in.Name,
		outputName:  out.Name,
		outputShape: outputShape,
	}, nil
}

func pickTensor(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %s tensors", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q", kind, name)
}

// batchOneShape fixes the leading (batch) dimension to 1. Every other
// dimension must be static so the output buffer can be preallocated.
func batchOneShape(dims ort.Shape) (ort.Shape, error) {
	if len(dims) == 0 {
		return nil, errors.New("scalar output is not a classifier")
	}
	shape := make(ort.Shape, len(dims))
	shape[0] = 1
	for i := 1; i < len(dims); i++ {
		if dims[i] <= 0 {
			return nil, fmt.Errorf("dimension %d is dynamic (%d)", i, dims[i])
		}
		shape[i] = dims[i]
	}
	return shape, nil
}

// Predict runs a single forward pass. shape is the full input shape including
// the batch dimension, which must be 1.
func (inf *Inference) Predict(input []float32, shape []int64) ([]float32, error) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session == nil {
		return nil, errors.New("inference session is nil")
	}
	if len(shape) == 0 || shape[0] != 1 {
		return nil, fmt.Errorf("input batch must be 1, got shape %v", shape)
	}

	inputShape := ort.NewShape(shape...)
	if inputShape.FlattenedSize() != int64(len(input)) {
		return nil, fmt.Errorf("input has wrong size: got %d, expected %d", len(input), inputShape.FlattenedSize())
	}

	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](inf.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = inf.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return append([]float32(nil), outputTensor.GetData()...), nil
}

// Close releases the ONNX session. The environment is left alone since other
// models may still be using it; see DestroyEnvironment.
func (inf *Inference) Close() error {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session != nil {
		err := inf.session.Destroy()
		inf.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}

// Ensure Inference implements Engine at compile time
var _ Engine = (*Inference)(nil)
