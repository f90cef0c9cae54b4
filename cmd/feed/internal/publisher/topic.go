package publisher

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicCreator makes sure the feed topic exists before the first write.
type TopicCreator struct {
	logger     *zap.Logger
	dialer     KafkaDialer
	clock      Clock
	partitions int
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Clock) *TopicCreator {
	return &TopicCreator{
		logger:     logger,
		dialer:     dialer,
		clock:      clock,
		partitions: 4,
	}
}

// Create is best effort: every failure is logged and the writer is left to
// surface a missing topic on its own.
func (tc *TopicCreator) Create(ctx context.Context, brokers []string, topic string) bool {
	var conn KafkaConn
	var err error

	for _, addr := range brokers {
		conn, err = tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if conn == nil {
		tc.logger.Warn("Failed to dial brokers", zap.Strings("brokers", brokers), zap.Error(err))
		return false
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		tc.logger.Warn("Failed to get controller", zap.Error(err))
		return false
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		tc.logger.Warn("Failed to dial controller", zap.String("addr", controllerAddr), zap.Error(err))
		return false
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     tc.partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		tc.logger.Info("Topic creation finished (might already exist)", zap.Error(err))
	} else {
		tc.logger.Info("Topic creation request sent", zap.String("topic", topic))
	}

	return tc.waitForTopic(ctx, conn, topic)
}

func (tc *TopicCreator) waitForTopic(ctx context.Context, conn KafkaConn, topic string) bool {
	for i := 0; i < 5; i++ {
		if ctx.Err() != nil {
			return false
		}
		tc.clock.Sleep(200 * time.Millisecond)
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return true
		}
	}
	tc.logger.Warn("Timed out waiting for topic", zap.String("topic", topic))
	return false
}
