package gateway

import (
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/crypto-monitor/cmd/gateway/internal/protocol"
)

const (
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

type ClientAdapter struct {
	conn        net.Conn
	hub         *hub.Hub
	logger      *zap.Logger
	validAssets map[string]bool

	mu     sync.Mutex
	send   chan []byte
	closed bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger, validAssets map[string]bool) *ClientAdapter {
	return &ClientAdapter{
		conn:        conn,
		hub:         h,
		send:        make(chan []byte, sendBuffer),
		logger:      logger,
		validAssets: validAssets,
		writeWait:   5 * time.Second,
		pongWait:    60 * time.Second,
		pingPeriod:  50 * time.Second,
	}
}

func (c *ClientAdapter) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.conn.RemoteAddr().String() }

// Close stops the write pump, which closes the conn.
func (c *ClientAdapter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *ClientAdapter) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	c.SendBytes(b)
}

// SendBytes never blocks: a slow client drops messages.
func (c *ClientAdapter) SendBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		c.logger.Debug("Send buffer full, dropping message", zap.String("client", c.ID()))
	}
}

// normalize lowercases asset ids.
func normalize(req *protocol.WSRequest) {
	for i, id := range req.Payload.Assets {
		req.Payload.Assets[i] = strings.ToLower(strings.TrimSpace(id))
	}
	req.Payload.Asset = strings.ToLower(strings.TrimSpace(req.Payload.Asset))
	req.Payload.Mode = strings.ToLower(strings.TrimSpace(req.Payload.Mode))
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		case ws.OpText:
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: "Invalid JSON"})
				continue
			}
			normalize(&req)
			c.hub.HandleCommand(c, req, c.validAssets)
		}
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
