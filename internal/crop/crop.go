// internal/crop/crop.go
package crop

import "strings"

// Registry keys a crop name can resolve to.
const (
	Rice   = "rice"
	Banana = "banana"
	Plant  = "plant"
)

// ChooseModelKey maps a free-text crop name to a model key. Anything that is not
// recognisably rice or banana, including an empty string, goes to the general
// plant model.
func ChooseModelKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(name, Rice):
		return Rice
	case strings.Contains(name, Banana):
		return Banana
	default:
		return Plant
	}
}
