// Package engine produces asset snapshots, either from a random walk or from
// a live market source. Each Engine owns its State; callers only ever see copies.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// ErrNoData means a tick produced nothing and there was no cached snapshot to fall back to.
var ErrNoData = errors.New("engine: no data available")

// Result is what one tick produced.
type Result struct {
	Assets []models.Asset
	Status string // advisory text for the consumer, empty when healthy
	Stale  bool   // Assets come from the last good tick
	NoData bool   // nothing to show yet
}

// Strategy produces prices for one mode.
type Strategy interface {
	Mode() string
	Interval() time.Duration
	// Hydrate runs once before the first tick.
	Hydrate(ctx context.Context, st *State) error
	Tick(ctx context.Context, st *State) (Result, error)
}

// for deterministic values
type Rand interface {
	Float64() float64
}

type RealRand struct{ *rand.Rand }

func NewRealRand() RealRand {
	return RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// Engine binds a strategy to the state it owns.
type Engine struct {
	strategy Strategy
	state    *State
}

func New(strategy Strategy, seeds []models.Asset) *Engine {
	return &Engine{strategy: strategy, state: NewState(seeds)}
}

func (e *Engine) Mode() string            { return e.strategy.Mode() }
func (e *Engine) Interval() time.Duration { return e.strategy.Interval() }

func (e *Engine) Hydrate(ctx context.Context) error {
	return e.strategy.Hydrate(ctx, e.state)
}

// Tick advances the strategy one step. A strategy error is still paired with
// whatever Result it produced, since live mode degrades to cached data.
func (e *Engine) Tick(ctx context.Context) (Result, error) {
	return e.strategy.Tick(ctx, e.state)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() []models.Asset {
	return e.state.Snapshot()
}
