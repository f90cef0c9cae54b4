package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/history"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/market"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Phase is the hydration state of a simulation.
type Phase int32

const (
	PhaseUnhydrated Phase = iota
	// PhaseHydrated means the market answered. Assets it omitted are still
	// seeded; Seeded counts them.
	PhaseHydrated
	PhaseHydrationFailed // seeded from FallbackPrices
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseUnhydrated:
		return "unhydrated"
	case PhaseHydrated:
		return "hydrated"
	case PhaseHydrationFailed:
		return "hydration_failed"
	case PhaseRunning:
		return "running"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// FallbackPrices seeds the simulation when no market price can be fetched.
var FallbackPrices = map[string]float64{
	"BTC": 95000,
	"ETH": 6500,
	"SOL": 350,
	"ADA": 1.20,
	"DOT": 15.0,
}

const defaultSeedPrice = 100.0

type SimulationConfig struct {
	Interval      time.Duration
	Band          float64 // width of the per-tick multiplicative factor, centred on 1
	Spread        float64 // high/low distance from price
	VolumeDrift   float64 // max volume added per tick
	HistoryPoints int     // length of the synthetic back-filled history
	Quote         string
	KlineInterval string
}

// DefaultSimulationConfig returns the 200ms dashboard settings.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Interval:      200 * time.Millisecond,
		Band:          0.015, // +/-0.75%
		Spread:        0.05,
		VolumeDrift:   1000,
		HistoryPoints: history.Cap,
		Quote:         "USDT",
		KlineInterval: "1h",
	}
}

// Simulation is a random-walk Strategy. On first use it tries to start from
// real prices and otherwise seeds itself from FallbackPrices.
type Simulation struct {
	cfg    SimulationConfig
	logger *zap.Logger
	rand   Rand
	source market.Source // optional
	phase  atomic.Int32
	seeded atomic.Int32
}

var _ Strategy = (*Simulation)(nil)

func NewSimulation(logger *zap.Logger, cfg SimulationConfig, rnd Rand, source market.Source) *Simulation {
	return &Simulation{cfg: cfg, logger: logger, rand: rnd, source: source}
}

func (s *Simulation) Mode() string            { return models.ModeSimulation }
func (s *Simulation) Interval() time.Duration { return s.cfg.Interval }
func (s *Simulation) Phase() Phase            { return Phase(s.phase.Load()) }

// Seeded returns how many assets hydration priced from FallbackPrices.
func (s *Simulation) Seeded() int { return int(s.seeded.Load()) }

// Hydrate moves the simulation out of PhaseUnhydrated. It only returns an
// error when ctx is cancelled; any fetch failure ends in seeded prices.
func (s *Simulation) Hydrate(ctx context.Context, st *State) error {
	if s.Phase() != PhaseUnhydrated {
		return nil
	}
	if !st.NeedsPrice() {
		s.phase.Store(int32(PhaseHydrated))
		return nil
	}

	if s.source != nil {
		err := s.hydrateFromMarket(ctx, st)
		if err == nil {
			s.phase.Store(int32(PhaseHydrated))
			s.logger.Info("Simulation hydrated from market", zap.Int("seeded", s.Seeded()))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("Simulation hydration failed, seeding fallback prices", zap.Error(err))
	}

	for _, id := range st.IDs() {
		a, _ := st.Get(id)
		if a.Price == 0 {
			st.Put(s.seed(a))
			s.seeded.Add(1)
		}
	}
	s.phase.Store(int32(PhaseHydrationFailed))
	return nil
}

func (s *Simulation) hydrateFromMarket(ctx context.Context, st *State) error {
	assets := st.Snapshot()
	pairs := make([]string, len(assets))
	for i, a := range assets {
		pairs[i] = Pair(a.Symbol, s.cfg.Quote)
	}

	tickers, err := s.source.Tickers(ctx, pairs)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return errors.New("market returned no tickers")
	}
	byPair := make(map[string]market.Ticker, len(tickers))
	for _, t := range tickers {
		byPair[t.Symbol] = t
	}

	for i, a := range assets {
		t, ok := byPair[pairs[i]]
		if !ok || a.Price != 0 {
			if a.Price == 0 {
				st.Put(s.seed(a))
				s.seeded.Add(1)
			}
			continue
		}

		closes, err := s.source.Klines(ctx, pairs[i], s.cfg.KlineInterval, s.cfg.HistoryPoints)
		if err != nil || len(closes) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			closes = SyntheticHistory(t.LastPrice, s.cfg.HistoryPoints, s.rand, s.cfg.Band)
		}
		a.History = history.Tail(closes, s.cfg.HistoryPoints)
		st.Put(UpdateAsset(a, tickerFields(t)))
	}
	return nil
}

func (s *Simulation) seed(a models.Asset) models.Asset {
	price, ok := FallbackPrices[a.Symbol]
	if !ok {
		price = defaultSeedPrice
	}
	a.Price = price
	a.PreviousPrice = price
	a.High24h = price * (1 + s.cfg.Spread)
	a.Low24h = price * (1 - s.cfg.Spread)
	a.History = SyntheticHistory(price, s.cfg.HistoryPoints, s.rand, s.cfg.Band)
	return a
}

// Tick moves every asset one random step.
func (s *Simulation) Tick(ctx context.Context, st *State) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.phase.Store(int32(PhaseRunning))

	for _, id := range st.IDs() {
		a, _ := st.Get(id)
		price := a.Price * s.factor()
		st.Put(UpdateAsset(a, Fields{
			Price:  price,
			Volume: f64(a.Volume + s.rand.Float64()*s.cfg.VolumeDrift),
			High:   f64(price * (1 + s.cfg.Spread)),
			Low:    f64(price * (1 - s.cfg.Spread)),
		}))
	}
	return Result{Assets: st.Snapshot()}, nil
}

func (s *Simulation) factor() float64 {
	return 1 + (s.rand.Float64()*s.cfg.Band - s.cfg.Band/2)
}

// SyntheticHistory walks backwards from current so a freshly seeded chart is
// not flat. The last point is current.
func SyntheticHistory(current float64, points int, rnd Rand, band float64) []float64 {
	if points <= 0 {
		return nil
	}
	h := make([]float64, points)
	price := current
	for i := points - 1; i >= 0; i-- {
		h[i] = price
		price *= 1 + (rnd.Float64()*band - band/2)
	}
	return h
}

// Pair builds the exchange symbol for an asset, e.g. BTC + USDT.
func Pair(symbol, quote string) string {
	return symbol + quote
}
