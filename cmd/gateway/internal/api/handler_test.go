package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/api"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/dashboard"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/testutils"
)

type failingStore struct{}

func (failingStore) GetSnapshots(ctx context.Context, ids []string) ([]string, error) {
	return nil, errors.New("redis down")
}

func (failingStore) GetStatus(ctx context.Context) (string, error) {
	return "", errors.New("redis down")
}

func newStore() *testutils.MockPriceStore {
	store := testutils.NewMockStore()
	store.Snapshots = map[string]string{
		"bitcoin":  `{"kind":"asset","seq":4,"asset":{"id":"bitcoin","symbol":"BTC","price":95430.2,"alertArmed":true}}`,
		"ethereum": `{"kind":"asset","seq":4,"asset":{"id":"ethereum","symbol":"ETH","price":3200}}`,
		"solana":   `not json`,
	}
	store.Status = `{"kind":"status","seq":4,"mode":"real","status":"ok"}`
	return store
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, dashboard.View) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var view dashboard.View
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	}
	return rec, view
}

func TestHandler_ListsAssetsInOrder(t *testing.T) {
	h := api.NewHandler(newStore(), []string{"ethereum", "bitcoin", "solana"}, "USDT", zap.NewNop())

	rec, view := get(t, h, "/api/assets")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, view.Assets, 2)
	assert.Equal(t, "ethereum", view.Assets[0].Asset.ID)
	assert.Equal(t, "bitcoin", view.Assets[1].Asset.ID)
	assert.Equal(t, "🚨 1 ALERTAS | Monitor", view.Title)
	assert.Equal(t, "real", view.Mode)
}

func TestHandler_Query(t *testing.T) {
	h := api.NewHandler(newStore(), []string{"bitcoin", "ethereum"}, "USDT", zap.NewNop())

	_, view := get(t, h, "/api/assets?q=eth")

	require.Len(t, view.Assets, 1)
	assert.Equal(t, "ethereum", view.Assets[0].Asset.ID)
	// title still counts the filtered-out alert
	assert.Equal(t, "🚨 1 ALERTAS | Monitor", view.Title)
}

func TestHandler_Errors(t *testing.T) {
	h := api.NewHandler(failingStore{}, []string{"bitcoin"}, "USDT", zap.NewNop())
	rec, _ := get(t, h, "/api/assets")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = api.NewHandler(newStore(), []string{"bitcoin"}, "USDT", zap.NewNop())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
