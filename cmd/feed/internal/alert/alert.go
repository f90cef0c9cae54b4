// Package alert evaluates price-drop thresholds and detects rising edges.
package alert

import "github.com/shubham-shewale/crypto-monitor/pkg/models"

// Armed reports whether price sits below a positive threshold.
func Armed(price, threshold float64) bool {
	return threshold > 0 && price < threshold
}

// Evaluate is Armed applied to an asset's live price.
func Evaluate(a models.Asset, threshold float64) bool {
	return Armed(a.Price, threshold)
}

// Tracker remembers the last armed state per asset so that consumers of a
// crossing (sound cue, title badge) fire once, not on every tick below threshold.
// Not safe for concurrent use; the scheduler loop owns it.
type Tracker struct {
	armed map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{armed: make(map[string]bool)}
}

// Observe records the current state and reports a false->true transition.
func (t *Tracker) Observe(id string, armed bool) (rising bool) {
	prev := t.armed[id]
	t.armed[id] = armed
	return armed && !prev
}

// Armed returns the last observed state.
func (t *Tracker) Armed(id string) bool { return t.armed[id] }

// Rearm forgets the previous state of id, so an explicitly confirmed threshold
// that is already crossed raises a new edge on the next observation.
func (t *Tracker) Rearm(id string) { delete(t.armed, id) }

// ActiveCount returns how many assets are currently armed.
func (t *Tracker) ActiveCount() int {
	n := 0
	for _, a := range t.armed {
		if a {
			n++
		}
	}
	return n
}
