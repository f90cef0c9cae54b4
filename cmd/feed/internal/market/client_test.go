package market_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/market"
)

const klinesBody = `[
	[1700000000000,"100.0","110.0","90.0","101.5","12.0",1700003599999],
	[1700003600000,"101.5","112.0","99.0","102.25","10.0",1700007199999],
	[1700007200000,"102.25","105.0","95.0","oops","8.0",1700010799999],
	[1700010800000]
]`

const tickersBody = `[
	{"symbol":"BTCUSDT","lastPrice":"95430.20","priceChangePercent":"-1.25","volume":"1234.5","highPrice":"97000.00","lowPrice":"94000.00"},
	{"symbol":"ETHUSDT","lastPrice":"","priceChangePercent":"0.5"}
]`

func fakeBinance(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Write([]byte(klinesBody))
	})
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var symbols []string
		assert.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("symbols")), &symbols))
		assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, symbols)
		w.Write([]byte(tickersBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Klines(t *testing.T) {
	var hits int32
	srv := fakeBinance(t, &hits)
	c := market.NewClient(zap.NewNop(), srv.Client(), srv.URL+"/api/v3")

	closes, err := c.Klines(context.Background(), "BTCUSDT", "1h", 50)

	require.NoError(t, err)
	assert.Equal(t, []float64{101.5, 102.25}, closes)
}

func TestClient_Tickers_SkipsMalformedRows(t *testing.T) {
	var hits int32
	srv := fakeBinance(t, &hits)
	c := market.NewClient(zap.NewNop(), srv.Client(), srv.URL+"/api/v3")

	tickers, err := c.Tickers(context.Background(), []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})

	require.NoError(t, err)
	require.Len(t, tickers, 1)
	assert.Equal(t, market.Ticker{
		Symbol:        "BTCUSDT",
		LastPrice:     95430.20,
		ChangePercent: -1.25,
		Volume:        1234.5,
		High:          97000,
		Low:           94000,
	}, tickers[0])
}

func TestClient_FallsBackOnProxy404(t *testing.T) {
	var proxyHits, directHits int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		http.NotFound(w, r)
	}))
	defer proxy.Close()
	direct := fakeBinance(t, &directHits)

	c := market.NewClient(zap.NewNop(), http.DefaultClient, proxy.URL+"/api/v3", direct.URL+"/api/v3")
	closes, err := c.Klines(context.Background(), "BTCUSDT", "1h", 50)

	require.NoError(t, err)
	assert.Len(t, closes, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&proxyHits))
	assert.EqualValues(t, 1, atomic.LoadInt32(&directHits))
}

func TestClient_FallsBackOnServerError(t *testing.T) {
	var directHits int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer proxy.Close()
	direct := fakeBinance(t, &directHits)

	c := market.NewClient(zap.NewNop(), http.DefaultClient, proxy.URL+"/api/v3", direct.URL+"/api/v3")
	_, err := c.Tickers(context.Background(), []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})

	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&directHits))
}

func TestClient_AllEndpointsFail(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer down.Close()

	c := market.NewClient(zap.NewNop(), http.DefaultClient, down.URL, down.URL)
	_, err := c.Tickers(context.Background(), []string{"BTCUSDT"})

	assert.True(t, errors.Is(err, market.ErrNotFound))
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	c := market.NewClient(zap.NewNop(), srv.Client(), srv.URL)
	_, err := c.Tickers(context.Background(), []string{"BTCUSDT"})

	assert.Error(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := market.NewClient(zap.NewNop(), http.DefaultClient, slow.URL, slow.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Klines(ctx, "BTCUSDT", "1h", 50)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
