// Package labels loads classifier label files. Two layouts are accepted: a JSON
// array of class names, or a JSON object keyed by the stringified class index.
package labels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrInvalidLabels is returned for label documents of any other shape.
var ErrInvalidLabels = errors.New("labels must be a JSON array of strings or an object keyed \"0\"..\"N-1\"")

// Labels is a parsed label document. Names returns the class names ordered by
// class id.
type Labels interface {
	Names() []string
}

// ArrayLabels is the ["healthy", "blast", ...] layout.
type ArrayLabels []string

func (a ArrayLabels) Names() []string {
	return append([]string(nil), a...)
}

// IndexedMapLabels is the {"0": "healthy", "1": "blast"} layout.
type IndexedMapLabels map[string]string

// Names orders the map by index. Parse has already checked that keys 0..N-1
// are all present.
func (m IndexedMapLabels) Names() []string {
	names := make([]string, len(m))
	for i := range names {
		names[i] = m[strconv.Itoa(i)]
	}
	return names
}

// Load reads and parses the label file at path.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return l.Names(), nil
}

// Parse decodes a label document into its variant.
func Parse(data []byte) (Labels, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidLabels)
	}

	switch trimmed[0] {
	case '[':
		var arr []string
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLabels, err)
		}
		if len(arr) == 0 {
			return nil, fmt.Errorf("%w: no classes", ErrInvalidLabels)
		}
		return ArrayLabels(arr), nil
	case '{':
		var m map[string]string
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLabels, err)
		}
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: no classes", ErrInvalidLabels)
		}
		for i := 0; i < len(m); i++ {
			if _, ok := m[strconv.Itoa(i)]; !ok {
				return nil, fmt.Errorf("%w: missing key %q", ErrInvalidLabels, strconv.Itoa(i))
			}
		}
		return IndexedMapLabels(m), nil
	default:
		return nil, ErrInvalidLabels
	}
}
