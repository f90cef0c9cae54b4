// Package api serves the REST read side of the gateway.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/dashboard"
)

const readTimeout = 2 * time.Second

// SnapshotReader is the part of repository.PriceStore the API needs.
type SnapshotReader interface {
	GetSnapshots(ctx context.Context, ids []string) ([]string, error)
	GetStatus(ctx context.Context) (string, error)
}

type Handler struct {
	store  SnapshotReader
	ids    []string
	quote  string
	logger *zap.Logger
}

// NewHandler lists ids in the given order.
func NewHandler(store SnapshotReader, ids []string, quote string, logger *zap.Logger) *Handler {
	return &Handler{store: store, ids: ids, quote: quote, logger: logger}
}

// ServeHTTP handles GET /api/assets?q=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	snapshots, err := h.store.GetSnapshots(ctx, h.ids)
	if err != nil {
		h.logger.Error("Failed to load snapshots", zap.Error(err))
		http.Error(w, "snapshots unavailable", http.StatusServiceUnavailable)
		return
	}
	status, err := h.store.GetStatus(ctx)
	if err != nil {
		// assets are still worth serving without a status line
		h.logger.Warn("Failed to load feed status", zap.Error(err))
		status = ""
	}

	view := dashboard.Build(snapshots, status, r.URL.Query().Get("q"), h.quote)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
