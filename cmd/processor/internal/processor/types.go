package processor

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Logger is the subset of *zap.Logger the workers log through.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// KafkaReader yields FeedEvents from the feed topic. Message keys are asset
// ids, or the status key for feed status events.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// RedisClient receives the processed snapshots. Each event becomes one
// pipeline: SET of the latest snapshot with SnapshotTTL, then PUBLISH on the
// asset's price channel or the status channel.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}
