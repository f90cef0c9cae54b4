package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// MockKafkaReader replays Messages, then reports DeadlineExceeded.
type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockPipeline records commands as "SET key" and "PUBLISH channel".
type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy missing methods like ACLCat, etc.

	ExecCount    int
	RecordedCmds []string
	FailExec     bool
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	if m.FailExec {
		return nil, errors.New("redis down")
	}
	return nil, nil
}

// Cmds returns a copy of the recorded commands.
func (m *MockPipeline) Cmds() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RecordedCmds...)
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }

// EventMessage encodes ev the way the feed writes it to Kafka.
func EventMessage(ev models.FeedEvent) kafka.Message {
	val, _ := json.Marshal(ev)
	return kafka.Message{Key: []byte(ev.Key()), Value: val}
}

func AssetEvent(id string, seq int64, price float64) models.FeedEvent {
	return models.FeedEvent{
		Kind:  models.KindAsset,
		Seq:   seq,
		Mode:  models.ModeSimulation,
		Asset: &models.Asset{ID: id, Symbol: id, Price: price},
	}
}
