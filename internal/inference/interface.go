// internal/inference/interface.go
package inference

// Engine runs a forward pass of a single loaded model.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Predict runs the model on a dense float32 tensor of the given shape and
	// returns the flattened output.
	Predict(input []float32, shape []int64) ([]float32, error)

	// Close releases any resources held by the engine.
	Close() error
}
