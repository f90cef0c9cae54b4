package scheduler

import (
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

type nopObserver struct{}

func (nopObserver) OnTick(models.UpdateTick)  {}
func (nopObserver) OnAlert(models.AlertEvent) {}

// LogObserver is the feed's stand-in for the dashboard's audible cue: every
// rising edge is logged once at warn level.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) OnTick(tick models.UpdateTick) {
	if tick.Status != "" {
		o.Logger.Debug("Feed status", zap.String("mode", tick.Mode), zap.String("status", tick.Status))
	}
}

func (o LogObserver) OnAlert(ev models.AlertEvent) {
	o.Logger.Warn("🚨 Price alert",
		zap.String("asset", ev.ID),
		zap.String("symbol", ev.Symbol),
		zap.Float64("price", ev.Price),
		zap.Float64("threshold", ev.Threshold))
}

// Observers fans out to several observers in order.
type Observers []Observer

func (obs Observers) OnTick(tick models.UpdateTick) {
	for _, o := range obs {
		o.OnTick(tick)
	}
}

func (obs Observers) OnAlert(ev models.AlertEvent) {
	for _, o := range obs {
		o.OnAlert(ev)
	}
}
