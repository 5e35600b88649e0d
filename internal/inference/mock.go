package inference

import (
	"fmt"
	"sync"
)

// MockInference is a mock implementation of Engine for testing.
// It returns fixed scores without requiring the ONNX shared library.
type MockInference struct {
	mu sync.Mutex

	// Scores is returned (copied) from every Predict call
	Scores []float32
	// ShouldError if true, Predict will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// CallCount tracks the number of times Predict was called
	CallCount int
	// LastShape is the input shape of the most recent call
	LastShape []int64
	// Closed is set by Close
	Closed bool
}

// NewMock creates a new MockInference with scores [0.1, 0.7, 0.2]
func NewMock() *MockInference {
	return NewMockWithScores([]float32{0.1, 0.7, 0.2})
}

// NewMockWithScores creates a MockInference returning the given scores
func NewMockWithScores(scores []float32) *MockInference {
	return &MockInference{Scores: scores}
}

// Predict validates the input and returns Scores.
func (m *MockInference) Predict(input []float32, shape []int64) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastShape = append([]int64(nil), shape...)

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return nil, fmt.Errorf("%s", m.ErrorMessage)
		}
		return nil, fmt.Errorf("mock inference error")
	}

	size := int64(1)
	for _, d := range shape {
		size *= d
	}
	if int64(len(input)) != size {
		return nil, fmt.Errorf("input has wrong size: got %d, expected %d", len(input), size)
	}

	return append([]float32(nil), m.Scores...), nil
}

// Close marks the mock closed
func (m *MockInference) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SetError configures the mock to return an error on the next Predict call
func (m *MockInference) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = true
	m.ErrorMessage = msg
}

// Calls returns CallCount under the mock's lock.
func (m *MockInference) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// ClearError clears any configured error
func (m *MockInference) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure MockInference implements Engine at compile time
var _ Engine = (*MockInference)(nil)
