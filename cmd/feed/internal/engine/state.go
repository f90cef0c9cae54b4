package engine

import "github.com/shubham-shewale/crypto-monitor/pkg/models"

// State is the canonical asset map of one engine, keyed by id and kept in
// insertion order. Only the engine's goroutine mutates it.
type State struct {
	order  []string
	assets map[string]models.Asset
}

// NewState copies seeds into a fresh State. Duplicate ids keep the first entry.
func NewState(seeds []models.Asset) *State {
	s := &State{assets: make(map[string]models.Asset, len(seeds))}
	for _, a := range seeds {
		if _, ok := s.assets[a.ID]; ok {
			continue
		}
		s.order = append(s.order, a.ID)
		s.assets[a.ID] = a.Clone()
	}
	return s
}

// Get returns a copy of the asset.
func (s *State) Get(id string) (models.Asset, bool) {
	a, ok := s.assets[id]
	if !ok {
		return models.Asset{}, false
	}
	return a.Clone(), true
}

// Put replaces a known asset. Unknown ids are ignored, the tracked set is fixed at creation.
func (s *State) Put(a models.Asset) bool {
	if _, ok := s.assets[a.ID]; !ok {
		return false
	}
	s.assets[a.ID] = a.Clone()
	return true
}

// IDs returns the tracked ids in order.
func (s *State) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *State) Len() int { return len(s.order) }

// Snapshot returns an ordered deep copy of every asset.
func (s *State) Snapshot() []models.Asset {
	out := make([]models.Asset, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.assets[id].Clone())
	}
	return out
}

// NeedsPrice reports whether any asset has never been priced.
func (s *State) NeedsPrice() bool {
	for _, id := range s.order {
		if s.assets[id].Price == 0 {
			return true
		}
	}
	return false
}
