// Package publisher fans scheduler ticks out to Kafka as FeedEvents.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// KafkaSink writes one event per asset plus one status event per tick, all in
// a single batch so a tick lands atomically or not at all.
type KafkaSink struct {
	logger *zap.Logger
	writer KafkaWriter
}

var _ Sink = (*KafkaSink)(nil)

func NewKafkaSink(logger *zap.Logger, writer KafkaWriter) *KafkaSink {
	return &KafkaSink{logger: logger, writer: writer}
}

func (s *KafkaSink) Publish(ctx context.Context, tick models.UpdateTick) error {
	events := Events(tick)
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Key(), err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.Key()), Value: payload})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write (seq %d): %w", tick.Seq, err)
	}
	s.logger.Debug("Tick published", zap.Int64("seq", tick.Seq), zap.Int("events", len(msgs)))
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Events splits a tick into its FeedEvents. The status event is always last.
func Events(tick models.UpdateTick) []models.FeedEvent {
	stats := tick.StatsByID()
	raised := make(map[string]bool, len(tick.Alerts))
	for _, a := range tick.Alerts {
		raised[a.ID] = true
	}

	out := make([]models.FeedEvent, 0, len(tick.Assets)+1)
	active := 0
	for i := range tick.Assets {
		a := tick.Assets[i].Clone()
		if a.AlertArmed {
			active++
		}
		ev := models.FeedEvent{
			Kind:        models.KindAsset,
			Seq:         tick.Seq,
			Timestamp:   tick.Timestamp,
			Mode:        tick.Mode,
			Asset:       &a,
			AlertRaised: raised[a.ID],
		}
		if st, ok := stats[a.ID]; ok {
			ev.Stats = &st
		}
		out = append(out, ev)
	}

	out = append(out, models.FeedEvent{
		Kind:         models.KindStatus,
		Seq:          tick.Seq,
		Timestamp:    tick.Timestamp,
		Mode:         tick.Mode,
		Status:       tick.Status,
		Stale:        tick.Stale,
		NoData:       tick.NoData,
		ActiveAlerts: active,
		NextUpdateIn: tick.NextUpdateIn,
	})
	return out
}
