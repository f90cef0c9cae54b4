package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/publisher"
	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/testutils"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

func sampleTick() models.UpdateTick {
	return models.UpdateTick{
		Seq:       7,
		Timestamp: 1000,
		Mode:      models.ModeSimulation,
		Assets: []models.Asset{
			{ID: "bitcoin", Symbol: "BTC", Price: 95000, Threshold: 90000, AlertArmed: false},
			{ID: "ethereum", Symbol: "ETH", Price: 6000, Threshold: 6500, AlertArmed: true},
		},
		Stats:  []models.StatisticsResult{{ID: "bitcoin", Average: 94000, Volatility: 12}},
		Alerts: []models.AlertEvent{{ID: "ethereum", Symbol: "ETH", Price: 6000, Threshold: 6500}},
	}
}

func TestKafkaSink_Publish(t *testing.T) {
	writer := &testutils.MockKafkaWriter{}
	sink := publisher.NewKafkaSink(zap.NewNop(), writer)

	if err := sink.Publish(context.Background(), sampleTick()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	writer.Mu.Lock()
	defer writer.Mu.Unlock()

	if len(writer.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(writer.Messages))
	}

	wantKeys := []string{"bitcoin", "ethereum", models.StatusEventKey}
	for i, msg := range writer.Messages {
		if string(msg.Key) != wantKeys[i] {
			t.Errorf("Message %d: expected key %s, got %s", i, wantKeys[i], msg.Key)
		}
	}

	var btc models.FeedEvent
	if err := json.Unmarshal(writer.Messages[0].Value, &btc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if btc.Kind != models.KindAsset || btc.Seq != 7 || btc.Asset.Price != 95000 {
		t.Errorf("Unexpected asset event: %+v", btc)
	}
	if btc.Stats == nil || btc.Stats.Average != 94000 {
		t.Errorf("Expected stats on bitcoin event, got %+v", btc.Stats)
	}
	if btc.AlertRaised {
		t.Error("bitcoin did not raise an alert")
	}

	var eth models.FeedEvent
	_ = json.Unmarshal(writer.Messages[1].Value, &eth)
	if !eth.AlertRaised {
		t.Error("Expected ethereum event to carry the raised alert")
	}
	if eth.Stats != nil {
		t.Error("ethereum has no stats yet")
	}

	var status models.FeedEvent
	_ = json.Unmarshal(writer.Messages[2].Value, &status)
	if status.Kind != models.KindStatus || status.ActiveAlerts != 1 {
		t.Errorf("Unexpected status event: %+v", status)
	}
}

func TestKafkaSink_NoDataStillSendsStatus(t *testing.T) {
	events := publisher.Events(models.UpdateTick{Seq: 1, Mode: models.ModeLive, NoData: true, Status: "offline"})

	if len(events) != 1 {
		t.Fatalf("Expected only the status event, got %d", len(events))
	}
	if !events[0].NoData || events[0].Status != "offline" || events[0].Key() != models.StatusEventKey {
		t.Errorf("Unexpected status event: %+v", events[0])
	}
}

func TestKafkaSink_EventsDoNotAliasTick(t *testing.T) {
	tick := sampleTick()
	tick.Assets[0].History = []float64{1, 2, 3}

	events := publisher.Events(tick)
	events[0].Asset.History[0] = 99

	if tick.Assets[0].History[0] != 1 {
		t.Error("Event shares history with the tick")
	}
}

func TestKafkaSink_WriteError(t *testing.T) {
	writer := &testutils.MockKafkaWriter{ShouldFail: true}
	sink := publisher.NewKafkaSink(zap.NewNop(), writer)

	if err := sink.Publish(context.Background(), sampleTick()); err == nil {
		t.Fatal("Expected write error")
	}
}

func TestTopicCreator_Flow(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}

	tc := publisher.NewTopicCreator(zap.NewNop(), mockDialer, mockClock)

	if !tc.Create(context.Background(), []string{"broker:9092"}, "crypto_ticks") {
		t.Error("Expected topic to be ready")
	}
	if mockDialer.ConnSpy == nil {
		t.Fatal("Dialer was never called")
	}
	if len(mockDialer.ConnSpy.CreatedTopics) == 0 || mockDialer.ConnSpy.CreatedTopics[0] != "crypto_ticks" {
		t.Errorf("Expected topic 'crypto_ticks', got %v", mockDialer.ConnSpy.CreatedTopics)
	}
	if !mockClock.Now().After(time.Unix(0, 0)) {
		t.Error("Expected the creator to wait on the clock")
	}
}

type failingDialer struct{ calls int }

func (d *failingDialer) DialContext(ctx context.Context, network, address string) (publisher.KafkaConn, error) {
	d.calls++
	return nil, errors.New("connection refused")
}

func TestTopicCreator_UnreachableBrokers(t *testing.T) {
	dialer := &failingDialer{}
	tc := publisher.NewTopicCreator(zap.NewNop(), dialer, &testutils.MockClock{})

	if tc.Create(context.Background(), []string{"a:9092", "b:9092"}, "crypto_ticks") {
		t.Error("Expected failure with no reachable broker")
	}
	if dialer.calls != 2 {
		t.Errorf("Expected every broker to be tried, got %d dials", dialer.calls)
	}
}
