package gateway

import (
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/repository"
)

// UpgradeHandler upgrades /ws requests and starts a client per connection.
type UpgradeHandler struct {
	hub         *hub.Hub
	limiter     repository.RateLimiter // nil disables limiting
	logger      *zap.Logger
	validAssets map[string]bool
}

func NewUpgradeHandler(h *hub.Hub, limiter repository.RateLimiter, logger *zap.Logger, validAssets map[string]bool) *UpgradeHandler {
	return &UpgradeHandler{hub: h, limiter: limiter, logger: logger, validAssets: validAssets}
}

func (u *UpgradeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if u.limiter != nil {
		ip := clientIP(r)
		ok, err := u.limiter.Allow(ip)
		if err != nil {
			// fail open: Redis trouble should not lock users out
			u.logger.Warn("Rate limiter unavailable", zap.Error(err))
		} else if !ok {
			u.logger.Info("Connection rate limited", zap.String("ip", ip))
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		u.logger.Debug("Upgrade failed", zap.Error(err))
		return
	}

	NewClient(conn, u.hub, u.logger, u.validAssets).Start()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
