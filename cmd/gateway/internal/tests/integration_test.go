package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

var validAssets = map[string]bool{"bitcoin": true, "ethereum": true}

func startServer(t *testing.T, limiter repository.RateLimiter) (*httptest.Server, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewRedisStore(rdb)
	wsHub := hub.NewHub(repo, zap.NewNop())

	server := httptest.NewServer(gateway.NewUpgradeHandler(wsHub, limiter, zap.NewNop(), validAssets))
	t.Cleanup(server.Close)
	return server, mr
}

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL(serverURL), nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	t.Cleanup(func() { wsConn.Close() })
	return wsConn
}

func read(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	return string(msg)
}

// publishUntilHeard retries until the gateway's subscription is live.
func publishUntilHeard(t *testing.T, mr *miniredis.Miniredis, channel, payload string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mr.Publish(channel, payload) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Nobody subscribed to %s", channel)
}

func TestEndToEnd_FullFlow(t *testing.T) {
	server, mr := startServer(t, nil)
	mr.Set(models.AssetKey("bitcoin"), `{"kind":"asset","seq":1,"asset":{"id":"bitcoin","price":95000}}`)

	wsConn := connectWS(t, server.URL)

	subMsg := `{"action": "subscribe", "payload": {"assets": [" Bitcoin "]}, "id": "t1"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(subMsg))

	if msg := read(t, wsConn); !strings.Contains(msg, "success") {
		t.Errorf("Expected subscription success, got: %s", msg)
	}
	if msg := read(t, wsConn); !strings.Contains(msg, "95000") {
		t.Errorf("Expected cached snapshot, got: %s", msg)
	}

	publishUntilHeard(t, mr, models.PriceChannel("bitcoin"), `{"kind":"asset","seq":2,"asset":{"id":"bitcoin","price":95100.5}}`)

	if msg := read(t, wsConn); !strings.Contains(msg, "95100.5") {
		t.Errorf("Expected price 95100.5, got: %s", msg)
	}

	unsubMsg := `{"action": "unsubscribe", "payload": {"assets": ["bitcoin"]}, "id": "t2"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(unsubMsg))

	if msg := read(t, wsConn); !strings.Contains(msg, "Unsubscribed") {
		t.Errorf("Expected unsubscribe ack, got: %s", msg)
	}
}

func TestEndToEnd_StatusBroadcast(t *testing.T) {
	server, mr := startServer(t, nil)
	wsConn := connectWS(t, server.URL)

	// a round trip proves the client is registered
	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`))
	if msg := read(t, wsConn); !strings.Contains(msg, "Unknown action") {
		t.Fatalf("Expected unknown action error, got: %s", msg)
	}

	// no subscription needed for status
	publishUntilHeard(t, mr, models.StatusChannel, `{"kind":"status","status":"Conectando..."}`)

	if msg := read(t, wsConn); !strings.Contains(msg, "Conectando") {
		t.Errorf("Expected status event, got: %s", msg)
	}
}

func TestEndToEnd_SetThresholdForwardsIntent(t *testing.T) {
	server, mr := startServer(t, nil)

	// the feed side of the intent channel
	feed := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer feed.Close()
	sub := feed.Subscribe(context.Background(), models.ThresholdChannel)
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	wsConn := connectWS(t, server.URL)
	wsConn.WriteMessage(websocket.TextMessage, []byte(`{"action":"set_threshold","payload":{"id":"BITCOIN","value":96000},"id":"th"}`))

	if msg := read(t, wsConn); !strings.Contains(msg, `"ack"`) {
		t.Fatalf("Expected ack, got: %s", msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("Intent not published: %v", err)
	}
	if !strings.Contains(msg.Payload, `"id":"bitcoin"`) || !strings.Contains(msg.Payload, "96000") {
		t.Errorf("Unexpected intent: %s", msg.Payload)
	}
}

func TestEndToEnd_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := repository.NewRedisRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 1, time.Minute)
	server, _ := startServer(t, limiter)

	connectWS(t, server.URL)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err == nil {
		t.Fatal("Second connection should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %v", resp)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	server, _ := startServer(t, nil)
	wsConn := connectWS(t, server.URL)

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "action": "subsc`))

	if msg := read(t, wsConn); !strings.Contains(msg, "Invalid JSON") {
		t.Errorf("Expected error message for bad JSON, got: %s", msg)
	}
}

func TestEndToEnd_MaxMessageSize(t *testing.T) {
	server, _ := startServer(t, nil)
	wsConn := connectWS(t, server.URL)

	hugePayload := strings.Repeat("a", 513*1024)
	hugeMsg := fmt.Sprintf(`{"action":"subscribe", "payload": {"assets": ["%s"]}}`, hugePayload)

	err := wsConn.WriteMessage(websocket.TextMessage, []byte(hugeMsg))
	// Depending on timing, write might succeed, but Read should fail (Disconnect)
	if err == nil {
		wsConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		_, _, err := wsConn.ReadMessage()
		if err == nil {
			t.Error("Server should have closed connection for huge message, but it stayed open")
		}
	}
}
