// Package intents receives threshold and mode changes made on the dashboard side.
package intents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

var ErrInvalidIntent = errors.New("intents: invalid intent")

// Controller is the part of the scheduler intents act on.
type Controller interface {
	SetThreshold(ctx context.Context, id string, value float64) error
	SwitchMode(ctx context.Context, mode string) error
}

// Listener forwards intents published on Redis to a Controller.
type Listener struct {
	logger *zap.Logger
	client *redis.Client
	ctrl   Controller
	ready  chan struct{}
}

func NewListener(logger *zap.Logger, client *redis.Client, ctrl Controller) *Listener {
	return &Listener{
		logger: logger,
		client: client,
		ctrl:   ctrl,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Run blocks until ctx is cancelled or the subscription dies.
func (l *Listener) Run(ctx context.Context) error {
	ps := l.client.Subscribe(ctx, models.ThresholdChannel, models.ModeChannel)
	defer ps.Close()

	// one confirmation per channel
	for i := 0; i < 2; i++ {
		if _, err := ps.Receive(ctx); err != nil {
			return fmt.Errorf("subscribe intents: %w", err)
		}
	}
	close(l.ready)
	l.logger.Info("Intent listener started", zap.Strings("channels", []string{models.ThresholdChannel, models.ModeChannel}))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("intent subscription closed")
			}
			if err := l.Handle(ctx, msg.Channel, msg.Payload); err != nil {
				l.logger.Warn("Intent rejected",
					zap.String("channel", msg.Channel),
					zap.String("payload", msg.Payload),
					zap.Error(err))
			}
		}
	}
}

// Handle decodes one intent from channel and applies it.
func (l *Listener) Handle(ctx context.Context, channel, payload string) error {
	switch channel {
	case models.ThresholdChannel:
		var intent models.ThresholdIntent
		if err := json.Unmarshal([]byte(payload), &intent); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidIntent, err)
		}
		if intent.ID == "" {
			return fmt.Errorf("%w: missing id", ErrInvalidIntent)
		}
		return l.ctrl.SetThreshold(ctx, intent.ID, intent.Value)

	case models.ModeChannel:
		var intent models.ModeIntent
		if err := json.Unmarshal([]byte(payload), &intent); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidIntent, err)
		}
		return l.ctrl.SwitchMode(ctx, intent.Mode)
	}
	return fmt.Errorf("%w: unexpected channel %q", ErrInvalidIntent, channel)
}
