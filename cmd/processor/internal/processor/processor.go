// Package processor moves FeedEvents from Kafka into Redis: the latest event
// of every key is stored and fanned out over pub/sub for the gateway.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/pkg/config"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// SnapshotTTL bounds how long a stale asset survives once the feed stops.
const SnapshotTTL = 1 * time.Hour

var errInvalidEvent = errors.New("invalid feed event")

type Processor struct {
	cfg        *config.Config
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	n := cfg.Processor.NumWorkers
	if n <= 0 {
		n = 1
	}
	return &Processor{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: n,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	go func() {
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Same key, same worker: per-asset order and dedup state stay local
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// the next tick supersedes this one anyway
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// not the run context: a shutdown must not cut a pipeline in half
	ctx := context.Background()

	last := make(map[string]cursor)

	for payload := range msgs {
		ev, err := decode(payload)
		if err != nil {
			p.logger.Error("Feed Event Decode Error", zap.Error(err))
			continue
		}

		key := ev.Key()
		if !last[key].accepts(ev) {
			p.logger.Debug("Skipping duplicate event", zap.String("key", key), zap.Int64("seq", ev.Seq), zap.Int64("last_seq", last[key].seq))
			continue
		}

		storeKey, channel := Destination(ev)

		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, storeKey, payload, SnapshotTTL)
		pipe.Publish(ctx, channel, payload)

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("key", key))
			continue
		}
		p.logger.Debug("Processed", zap.String("key", key), zap.Int("worker_id", id), zap.Int64("seq", ev.Seq))
		last[key] = cursor{seq: ev.Seq, ts: ev.Timestamp}
	}
}

// cursor is the last event written for a key.
type cursor struct {
	seq int64
	ts  int64
}

// accepts reports whether ev is newer. A lower Seq with a later timestamp
// is a restarted feed.
func (c cursor) accepts(ev models.FeedEvent) bool {
	return ev.Seq > c.seq || ev.Timestamp > c.ts
}

func decode(payload []byte) (models.FeedEvent, error) {
	var ev models.FeedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	switch ev.Kind {
	case models.KindAsset:
		if ev.Asset == nil || ev.Asset.ID == "" {
			return ev, fmt.Errorf("%w: asset event without asset", errInvalidEvent)
		}
	case models.KindStatus:
	default:
		return ev, fmt.Errorf("%w: unknown kind %q", errInvalidEvent, ev.Kind)
	}
	return ev, nil
}

// Destination returns the Redis key and channel an event is written to.
func Destination(ev models.FeedEvent) (key, channel string) {
	if ev.Kind == models.KindAsset && ev.Asset != nil {
		return models.AssetKey(ev.Asset.ID), models.PriceChannel(ev.Asset.ID)
	}
	return models.StatusKey, models.StatusChannel
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
