// Package normalization maps instrument symbols to canonical asset keys.
package normalization

// Normalizer maps an asset symbol to its canonical group key.
// Implementations must be pure, deterministic and total.
type Normalizer interface {
	Normalize(symbol string) string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(symbol string) string

// Normalize calls f(symbol).
func (f NormalizerFunc) Normalize(symbol string) string {
	return f(symbol)
}

// Identity maps every symbol to itself.
var Identity Normalizer = NormalizerFunc(func(symbol string) string { return symbol })
