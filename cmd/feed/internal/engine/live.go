package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/history"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/market"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Advisory texts shown by the dashboard.
const (
	StatusStale  = "⚠️ Datos en caché: reintentando conexión..."
	StatusNoData = "⚠️ Sin datos: Verificando conexión..."
)

type LiveConfig struct {
	Interval      time.Duration
	Quote         string
	KlineInterval string
	KlineLimit    int
}

func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Interval:      5 * time.Second,
		Quote:         "USDT",
		KlineInterval: "1h",
		KlineLimit:    history.Cap,
	}
}

// Live polls a market source. History is backfilled from klines once, then
// every ticker poll layers on top of it.
type Live struct {
	cfg    LiveConfig
	logger *zap.Logger
	source market.Source
	last   []models.Asset // last good snapshot
}

var _ Strategy = (*Live)(nil)

func NewLive(logger *zap.Logger, cfg LiveConfig, source market.Source) *Live {
	return &Live{cfg: cfg, logger: logger, source: source}
}

func (l *Live) Mode() string            { return models.ModeLive }
func (l *Live) Interval() time.Duration { return l.cfg.Interval }

// Hydrate backfills each asset's history from klines and caches the result.
// A symbol that fails is logged and left as it is; only cancellation is
// returned as an error.
func (l *Live) Hydrate(ctx context.Context, st *State) error {
	filled := 0
	for _, id := range st.IDs() {
		a, _ := st.Get(id)
		pair := Pair(a.Symbol, l.cfg.Quote)

		closes, err := l.source.Klines(ctx, pair, l.cfg.KlineInterval, l.cfg.KlineLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("History fetch failed", zap.String("symbol", pair), zap.Error(err))
			continue
		}
		if len(closes) == 0 {
			continue
		}

		a.History = history.Tail(closes, history.Cap)
		if a.Price == 0 {
			a.Price = closes[len(closes)-1]
			a.PreviousPrice = a.Price
		}
		st.Put(a)
		filled++
	}

	if filled > 0 {
		// hydrated history is served if the first ticker poll fails
		l.last = st.Snapshot()
	}
	l.logger.Info("Live history hydrated", zap.Int("assets", filled), zap.Int("total", st.Len()))
	return nil
}

// Tick polls the 24h ticker. Assets the response omits keep their values.
// On failure the last good snapshot is returned as stale; with no snapshot the
// result is empty and the error wraps ErrNoData.
func (l *Live) Tick(ctx context.Context, st *State) (Result, error) {
	ids := st.IDs()
	pairs := make([]string, len(ids))
	for i, id := range ids {
		a, _ := st.Get(id)
		pairs[i] = Pair(a.Symbol, l.cfg.Quote)
	}

	tickers, err := l.source.Tickers(ctx, pairs)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if l.last != nil {
			return Result{Assets: models.CloneAssets(l.last), Stale: true, Status: StatusStale},
				fmt.Errorf("ticker poll failed, serving cache: %w", err)
		}
		return Result{NoData: true, Status: StatusNoData}, errors.Join(ErrNoData, err)
	}

	byPair := make(map[string]market.Ticker, len(tickers))
	for _, t := range tickers {
		byPair[t.Symbol] = t
	}

	missing := 0
	for i, id := range ids {
		t, ok := byPair[pairs[i]]
		if !ok {
			missing++
			continue
		}
		a, _ := st.Get(id)
		st.Put(UpdateAsset(a, tickerFields(t)))
	}
	if missing > 0 {
		l.logger.Debug("Ticker response missing symbols", zap.Int("missing", missing))
	}

	snap := st.Snapshot()
	l.last = models.CloneAssets(snap)
	return Result{Assets: snap}, nil
}

func tickerFields(t market.Ticker) Fields {
	return Fields{
		Price:         t.LastPrice,
		ChangePercent: f64(t.ChangePercent),
		Volume:        f64(t.Volume),
		High:          f64(t.High),
		Low:           f64(t.Low),
	}
}
