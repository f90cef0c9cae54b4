// Package history keeps the bounded rolling price window of an asset.
package history

// Cap is the maximum number of samples kept per asset.
const Cap = 50

// Push appends price and evicts the oldest samples beyond Cap.
// The input slice is never modified.
func Push(h []float64, price float64) []float64 {
	return PushN(h, price, Cap)
}

// PushN is Push with an explicit capacity. A non-positive limit keeps everything.
func PushN(h []float64, price float64, limit int) []float64 {
	n := len(h) + 1
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}

	out := make([]float64, 0, n-start)
	if start < len(h) {
		out = append(out, h[start:]...)
	}
	return append(out, price)
}

// Tail returns a copy of the newest limit samples.
func Tail(h []float64, limit int) []float64 {
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]float64, len(h))
	copy(out, h)
	return out
}
