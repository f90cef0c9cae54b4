// Package hub tracks websocket clients and their asset subscriptions, keeping
// one upstream Redis subscription per asset no matter how many clients watch it.
package hub

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

const intentTimeout = 2 * time.Second

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

type Hub struct {
	clients     map[ClientInterface]bool
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool

	store    repository.PriceStore
	logger   *zap.Logger
	mu       sync.RWMutex
	refCount map[string]int
}

func NewHub(store repository.PriceStore, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:     make(map[ClientInterface]bool),
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		store:       store,
		logger:      logger,
		refCount:    make(map[string]int),
	}

	go h.store.RunPubSub(context.Background(), h.Broadcast, h.BroadcastStatus)

	return h
}

// Register adds a client for status broadcasts and sends it the current status.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go func() {
		status, err := h.store.GetStatus(context.Background())
		if err != nil {
			h.logger.Warn("Failed to load feed status", zap.Error(err))
			return
		}
		if status != "" {
			client.SendBytes([]byte(status))
		}
	}()
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest, validAssets map[string]bool) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req, validAssets)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	case protocol.ActionSetThreshold:
		h.handleSetThreshold(client, req, validAssets)
	case protocol.ActionSetMode:
		h.handleSetMode(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest, validAssets map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []string
	for _, id := range req.Payload.Assets {
		if validAssets[id] {
			// already watching
			if h.clientSubs[client] != nil && h.clientSubs[client][id] {
				continue
			}
			valid = append(valid, id)
		}
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new assets provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}

	for _, id := range valid {
		h.clientSubs[client][id] = true
		if h.subscribers[id] == nil {
			h.subscribers[id] = make(map[ClientInterface]bool)
		}
		h.subscribers[id][client] = true

		h.refCount[id]++
		if h.refCount[id] == 1 {
			if err := h.store.SubscribeToFeed(context.Background(), id); err != nil {
				h.logger.Error("Failed to subscribe upstream", zap.String("asset", id), zap.Error(err))
			}
		}
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))

	// Snapshots are fetched outside the lock
	go func(targets []string) {
		snapshots, err := h.store.GetSnapshots(context.Background(), targets)
		if err != nil {
			h.logger.Warn("Failed to load snapshots", zap.Strings("assets", targets), zap.Error(err))
			return
		}
		for _, snap := range snapshots {
			client.SendBytes([]byte(snap))
		}
	}(valid)
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, id := range req.Payload.Assets {
			if subs[id] {
				delete(subs, id)
				delete(h.subscribers[id], client)
				removed = append(removed, id)
				h.decreaseRefCount(id)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Assets))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for id := range subs {
			delete(h.subscribers[id], client)
			h.decreaseRefCount(id)
		}
		h.clientSubs[client] = make(map[string]bool)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all assets")
}

// handleSetThreshold forwards the intent to the feed. The feed is the only
// owner of thresholds, so the ack means "forwarded", not "applied".
func (h *Hub) handleSetThreshold(client ClientInterface, req protocol.WSRequest, validAssets map[string]bool) {
	id := req.Payload.Asset
	if !validAssets[id] {
		h.sendError(client, req.ID, "Unknown asset: "+id)
		return
	}
	if req.Payload.Value == nil {
		h.sendError(client, req.ID, "Missing threshold value")
		return
	}
	value := *req.Payload.Value
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		h.sendError(client, req.ID, "Threshold must be a non-negative number")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()
	if err := h.store.PublishThreshold(ctx, models.ThresholdIntent{ID: id, Value: value}); err != nil {
		h.logger.Error("Failed to forward threshold", zap.String("asset", id), zap.Error(err))
		h.sendError(client, req.ID, "Failed to forward threshold")
		return
	}

	if value == 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Threshold for %s cleared", id))
		return
	}
	h.sendAck(client, req.ID, "success", fmt.Sprintf("Threshold for %s set to %g", id, value))
}

func (h *Hub) handleSetMode(client ClientInterface, req protocol.WSRequest) {
	mode := req.Payload.Mode
	if mode != models.ModeSimulation && mode != models.ModeLive {
		h.sendError(client, req.ID, "Unknown mode: "+mode)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()
	if err := h.store.PublishMode(ctx, models.ModeIntent{Mode: mode}); err != nil {
		h.logger.Error("Failed to forward mode", zap.String("mode", mode), zap.Error(err))
		h.sendError(client, req.ID, "Failed to forward mode")
		return
	}
	h.sendAck(client, req.ID, "success", "Mode change requested: "+mode)
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for id := range subs {
			delete(h.subscribers[id], client)
			h.decreaseRefCount(id)
		}
		delete(h.clientSubs, client)
	}
	delete(h.clients, client)
	client.Close()
}

// Broadcast sends an asset event to the clients watching id.
func (h *Hub) Broadcast(id string, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.subscribers[id]; ok {
		msgBytes := []byte(payload)
		for client := range clients {
			client.SendBytes(msgBytes)
		}
	}
}

// BroadcastStatus sends a feed status event to every registered client.
func (h *Hub) BroadcastStatus(payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgBytes := []byte(payload)
	for client := range h.clients {
		client.SendBytes(msgBytes)
	}
}

// Stats reports registered clients and upstream subscriptions.
func (h *Hub) Stats() (clients, upstream int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.refCount)
}

func (h *Hub) decreaseRefCount(id string) {
	h.refCount[id]--
	if h.refCount[id] <= 0 {
		if err := h.store.UnsubscribeFromFeed(context.Background(), id); err != nil {
			h.logger.Error("Failed to unsubscribe upstream", zap.String("asset", id), zap.Error(err))
		}
		delete(h.refCount, id)
		delete(h.subscribers, id)
	}
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}
