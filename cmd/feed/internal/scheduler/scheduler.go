// Package scheduler drives the active price engine, merges thresholds and
// statistics into each snapshot, and hands the result to a publisher.Sink.
//
// All scheduler state is owned by the Run goroutine. The engine of the active
// mode runs in its own runner goroutine and talks to the loop through a
// one-slot channel, so a slow consumer sees the newest snapshot and never a
// backlog.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/alert"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/engine"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/publisher"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

var (
	ErrUnknownMode      = errors.New("scheduler: unknown mode")
	ErrUnknownAsset     = errors.New("scheduler: unknown asset")
	ErrInvalidThreshold = errors.New("scheduler: threshold must be a finite number >= 0")
	ErrStopped          = errors.New("scheduler: not running")
)

// Texts published while a mode is starting up.
const (
	StatusStartingSimulation = "🔄 Iniciando motor de simulación..."
	StatusConnectingLive     = "⏳ Conectando con Binance API..."
)

// EngineFactory builds a fresh engine for a mode from the seed assets.
type EngineFactory func(seeds []models.Asset) *engine.Engine

type StatsWorker interface {
	Submit(assets []models.Asset) bool
	Results() <-chan []models.StatisticsResult
	Busy() bool
}

type Clock interface {
	Now() time.Time
}

// Observer is called from the loop goroutine after each published tick.
// Implementations must not block.
type Observer interface {
	OnTick(tick models.UpdateTick)
	OnAlert(ev models.AlertEvent)
}

type Options struct {
	Mode       string
	Seeds      []models.Asset
	Thresholds map[string]float64 // initial thresholds by asset id
	Observer   Observer
	Metrics    *Metrics
}

type frame struct {
	mode     string
	interval time.Duration
	at       time.Time
	res      engine.Result
	err      error
}

type runner struct {
	mode   string
	frames chan frame
	cancel context.CancelFunc
	done   chan struct{}
}

type command func(ctx context.Context)

type Scheduler struct {
	logger    *zap.Logger
	opts      Options
	factories map[string]EngineFactory
	worker    StatsWorker
	sink      publisher.Sink
	clock     Clock
	metrics   *Metrics
	observer  Observer
	known     map[string]bool

	cmds    chan command
	stopped chan struct{}
	mode    atomic.Value // string

	// owned by Run
	active       *runner
	seq          int64
	thresholds   map[string]float64
	tracker      *alert.Tracker
	stats        map[string]models.StatisticsResult
	discardStats bool
	submittedAt  time.Time
}

func New(
	opts Options,
	logger *zap.Logger,
	factories map[string]EngineFactory,
	worker StatsWorker,
	sink publisher.Sink,
	clock Clock,
) (*Scheduler, error) {
	if _, ok := factories[opts.Mode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	if len(opts.Seeds) == 0 {
		return nil, errors.New("scheduler: no assets to track")
	}

	known := make(map[string]bool, len(opts.Seeds))
	for _, a := range opts.Seeds {
		known[a.ID] = true
	}

	thresholds := make(map[string]float64)
	for id, v := range opts.Thresholds {
		if err := validThreshold(v); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		if known[id] && v > 0 {
			thresholds[id] = v
		}
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	s := &Scheduler{
		logger:     logger,
		opts:       opts,
		factories:  factories,
		worker:     worker,
		sink:       sink,
		clock:      clock,
		metrics:    metrics,
		observer:   observer,
		known:      known,
		cmds:       make(chan command),
		stopped:    make(chan struct{}),
		thresholds: thresholds,
		tracker:    alert.NewTracker(),
		stats:      make(map[string]models.StatisticsResult),
		// start from the clock so a restarted feed keeps Seq increasing
		seq:        max(0, clock.Now().UnixMicro()),
	}
	s.mode.Store(opts.Mode)
	return s, nil
}

// Mode returns the active mode. Safe from any goroutine.
func (s *Scheduler) Mode() string { return s.mode.Load().(string) }

// SwitchMode stops the current engine and starts mode from the seed assets.
// It returns once the old runner has exited and the new one is started.
// Thresholds carry over; statistics start fresh.
func (s *Scheduler) SwitchMode(ctx context.Context, mode string) error {
	if _, ok := s.factories[mode]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return s.do(ctx, func(loopCtx context.Context) { s.switchTo(loopCtx, mode) })
}

// SetThreshold sets the alert threshold of an asset. Zero clears it. Setting
// a threshold always rearms the alert, so a value that is already crossed
// raises a fresh edge on the next tick.
func (s *Scheduler) SetThreshold(ctx context.Context, id string, value float64) error {
	if err := validThreshold(value); err != nil {
		return err
	}
	if !s.known[id] {
		return fmt.Errorf("%w: %q", ErrUnknownAsset, id)
	}
	return s.do(ctx, func(context.Context) { s.applyThreshold(id, value) })
}

func validThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

func (s *Scheduler) do(ctx context.Context, fn func(context.Context)) error {
	done := make(chan struct{})
	cmd := func(loopCtx context.Context) {
		fn(loopCtx)
		close(done)
	}

	select {
	case s.cmds <- cmd:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the scheduler until ctx is cancelled. The active runner is torn
// down before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	s.logger.Info("Scheduler Started", zap.String("mode", s.Mode()), zap.Int("assets", len(s.opts.Seeds)))
	s.start(ctx, s.Mode())
	defer s.stop()

	for {
		var frames <-chan frame
		if s.active != nil {
			frames = s.active.frames
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Shutdown signal received, stopping scheduler...")
			return nil
		case cmd := <-s.cmds:
			cmd(ctx)
		case f := <-frames:
			s.handle(ctx, f)
		case results := <-s.worker.Results():
			s.mergeStats(results)
		}
	}
}

func (s *Scheduler) start(parent context.Context, mode string) {
	eng := s.factories[mode](models.CloneAssets(s.opts.Seeds))
	ctx, cancel := context.WithCancel(parent)

	r := &runner{
		mode:   mode,
		frames: make(chan frame, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.active = r
	s.mode.Store(mode)

	go s.runMode(ctx, eng, r)
}

// stop cancels the active runner and waits for it. Frames it left behind go
// with its channel.
func (s *Scheduler) stop() {
	if s.active == nil {
		return
	}
	s.active.cancel()
	<-s.active.done
	s.active = nil
}

func (s *Scheduler) switchTo(ctx context.Context, mode string) {
	from := s.Mode()
	if from == mode && s.active != nil {
		return
	}

	s.stop()

	// A result still in the worker belongs to the old engine.
	select {
	case <-s.worker.Results():
	default:
	}
	s.discardStats = s.worker.Busy()
	s.stats = make(map[string]models.StatisticsResult)

	s.start(ctx, mode)
	s.metrics.ModeSwitches.Inc()
	s.logger.Info("Mode switched", zap.String("from", from), zap.String("to", mode))
}

func (s *Scheduler) applyThreshold(id string, value float64) {
	if value == 0 {
		delete(s.thresholds, id)
	} else {
		s.thresholds[id] = value
	}
	s.tracker.Rearm(id)
	s.logger.Info("Threshold updated", zap.String("asset", id), zap.Float64("threshold", value))
}

func (s *Scheduler) runMode(ctx context.Context, eng *engine.Engine, r *runner) {
	defer close(r.done)

	s.offer(r, frame{mode: r.mode, interval: eng.Interval(), at: s.clock.Now(), res: engine.Result{Status: startingStatus(r.mode)}})

	if err := eng.Hydrate(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Hydration Error", zap.String("mode", r.mode), zap.Error(err))
		}
		return
	}

	s.tick(ctx, eng, r)

	ticker := time.NewTicker(eng.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, eng, r)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, eng *engine.Engine, r *runner) {
	res, err := eng.Tick(ctx)
	if ctx.Err() != nil {
		return
	}
	s.offer(r, frame{mode: r.mode, interval: eng.Interval(), at: s.clock.Now(), res: res, err: err})
}

// offer never blocks: an unread frame is replaced by the newer one.
func (s *Scheduler) offer(r *runner, f frame) {
	for {
		select {
		case r.frames <- f:
			return
		default:
		}
		select {
		case <-r.frames:
			s.metrics.Coalesced.Inc()
		default:
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, f frame) {
	if f.err != nil {
		s.metrics.FetchErrors.WithLabelValues(f.mode).Inc()
		s.logger.Warn("Engine tick failed",
			zap.String("mode", f.mode),
			zap.Bool("stale", f.res.Stale),
			zap.Bool("no_data", f.res.NoData),
			zap.Error(f.err))
	}

	s.seq++
	tick := models.UpdateTick{
		Seq:       s.seq,
		Timestamp: f.at.UnixMicro(),
		Mode:      f.mode,
		Assets:    f.res.Assets,
		Status:    f.res.Status,
		Stale:     f.res.Stale,
		NoData:    f.res.NoData,
	}
	if f.mode == models.ModeLive {
		tick.NextUpdateIn = int(math.Ceil(f.interval.Seconds()))
	}

	for i := range tick.Assets {
		a := &tick.Assets[i]
		a.Threshold = s.thresholds[a.ID]
		a.AlertArmed = alert.Evaluate(*a, a.Threshold)
		if s.tracker.Observe(a.ID, a.AlertArmed) {
			tick.Alerts = append(tick.Alerts, models.AlertEvent{
				ID:        a.ID,
				Symbol:    a.Symbol,
				Price:     a.Price,
				Threshold: a.Threshold,
				Timestamp: tick.Timestamp,
			})
		}
	}

	if len(tick.Assets) > 0 {
		if s.worker.Submit(tick.Assets) {
			s.submittedAt = time.Now()
		} else {
			s.metrics.StatsSkipped.Inc()
		}
	}
	tick.Stats = s.statsFor(tick.Assets)

	s.metrics.Ticks.WithLabelValues(f.mode).Inc()
	s.metrics.ActiveAlerts.Set(float64(s.tracker.ActiveCount()))

	if err := s.sink.Publish(ctx, tick); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Error("Publish Error", zap.Int64("seq", tick.Seq), zap.Error(err))
	}

	s.observer.OnTick(tick)
	for _, ev := range tick.Alerts {
		s.metrics.Alerts.WithLabelValues(ev.ID).Inc()
		s.observer.OnAlert(ev)
	}
}

func (s *Scheduler) mergeStats(results []models.StatisticsResult) {
	if s.discardStats {
		s.discardStats = false
		return
	}
	if !s.submittedAt.IsZero() {
		s.metrics.StatsLatency.Observe(time.Since(s.submittedAt).Seconds())
	}
	for _, r := range results {
		if s.known[r.ID] {
			s.stats[r.ID] = r
		}
	}
}

func (s *Scheduler) statsFor(assets []models.Asset) []models.StatisticsResult {
	out := make([]models.StatisticsResult, 0, len(assets))
	for _, a := range assets {
		if st, ok := s.stats[a.ID]; ok {
			out = append(out, st)
		}
	}
	return out
}

func startingStatus(mode string) string {
	if mode == models.ModeLive {
		return StatusConnectingLive
	}
	return StatusStartingSimulation
}
