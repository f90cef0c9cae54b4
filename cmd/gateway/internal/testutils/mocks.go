package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsg() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockClient) LastMsgType() string {
	return m.LastMsg().Type
}

func (m *MockClient) Raw() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

var (
	_ repository.PriceStore  = (*MockPriceStore)(nil)
	_ repository.RateLimiter = (*MockRateLimiter)(nil)
)

// MockPriceStore simulates Redis
type MockPriceStore struct {
	SubscribedChannels map[string]int // asset id -> count
	Thresholds         []models.ThresholdIntent
	Modes              []models.ModeIntent
	Snapshots          map[string]string
	Status             string
	FailPublish        bool
	Mu                 sync.Mutex
}

func NewMockStore() *MockPriceStore {
	return &MockPriceStore{
		SubscribedChannels: make(map[string]int),
		Snapshots: map[string]string{
			"bitcoin": `{"kind":"asset","seq":1,"asset":{"id":"bitcoin","symbol":"BTC","price":95000}}`,
		},
	}
}

func (m *MockPriceStore) GetSnapshots(ctx context.Context, ids []string) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []string
	for _, id := range ids {
		if s, ok := m.Snapshots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockPriceStore) GetStatus(ctx context.Context) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Status, nil
}

func (m *MockPriceStore) SubscribeToFeed(ctx context.Context, id string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[id]++
	return nil
}

func (m *MockPriceStore) UnsubscribeFromFeed(ctx context.Context, id string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[id]--
	if m.SubscribedChannels[id] <= 0 {
		delete(m.SubscribedChannels, id)
	}
	return nil
}

func (m *MockPriceStore) PublishThreshold(ctx context.Context, intent models.ThresholdIntent) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailPublish {
		return errors.New("redis down")
	}
	m.Thresholds = append(m.Thresholds, intent)
	return nil
}

func (m *MockPriceStore) PublishMode(ctx context.Context, intent models.ModeIntent) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailPublish {
		return errors.New("redis down")
	}
	m.Modes = append(m.Modes, intent)
	return nil
}

func (m *MockPriceStore) RunPubSub(ctx context.Context, onAsset func(id string, payload string), onStatus func(payload string)) {
	// No-op for unit tests
}

func (m *MockPriceStore) Close() error { return nil }

// MockRateLimiter allows the first Limit calls per IP.
type MockRateLimiter struct {
	Limit int
	Calls map[string]int
	Err   error
	Mu    sync.Mutex
}

func (m *MockRateLimiter) Allow(ip string) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[ip]++
	return m.Calls[ip] <= m.Limit, nil
}
