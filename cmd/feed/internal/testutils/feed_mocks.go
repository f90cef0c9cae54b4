package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/market"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/publisher"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockClock struct {
	CurrentTime time.Time
	Mu          sync.Mutex
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

type MockRand struct {
	ValFloat float64
}

func (m *MockRand) Float64() float64 { return m.ValFloat }

// SeqRand cycles through Values.
type SeqRand struct {
	Values []float64
	i      int
}

func (s *SeqRand) Float64() float64 {
	if len(s.Values) == 0 {
		return 0.5
	}
	v := s.Values[s.i%len(s.Values)]
	s.i++
	return v
}

// MockMarket is a scripted market.Source.
type MockMarket struct {
	Mu          sync.Mutex
	TickerRows  []market.Ticker
	KlineRows   map[string][]float64
	TickerErr   error
	KlineErr    error
	TickerCalls int
	KlineCalls  int
	// OnTickers runs before each Tickers call returns.
	OnTickers func()
}

var _ market.Source = (*MockMarket)(nil)

func (m *MockMarket) Klines(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.KlineCalls++
	if m.KlineErr != nil {
		return nil, m.KlineErr
	}
	rows, ok := m.KlineRows[symbol]
	if !ok {
		return nil, market.ErrNotFound
	}
	out := make([]float64, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *MockMarket) Tickers(ctx context.Context, symbols []string) ([]market.Ticker, error) {
	m.Mu.Lock()
	hook := m.OnTickers
	m.TickerCalls++
	err := m.TickerErr
	rows := append([]market.Ticker(nil), m.TickerRows...)
	m.Mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *MockMarket) SetTickerErr(err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.TickerErr = err
}

func (m *MockMarket) SetTickers(rows []market.Ticker) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.TickerRows = rows
}

// MockSink records published ticks.
type MockSink struct {
	Mu         sync.Mutex
	Ticks      []models.UpdateTick
	ShouldFail bool
}

var _ publisher.Sink = (*MockSink)(nil)

func (m *MockSink) Publish(ctx context.Context, tick models.UpdateTick) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("sink error")
	}
	m.Ticks = append(m.Ticks, tick)
	return nil
}

func (m *MockSink) Close() error { return nil }

// Snapshot returns a copy of the recorded ticks.
func (m *MockSink) Snapshot() []models.UpdateTick {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]models.UpdateTick(nil), m.Ticks...)
}

type MockKafkaConn struct {
	CreatedTopics []string
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	// Simulate "Ready" state immediately
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (publisher.KafkaConn, error) {
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}
