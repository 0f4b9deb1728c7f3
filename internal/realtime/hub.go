// Package realtime owns the live socket connections and the presence registry
// the dispatch core consults. The core only ever reads presence; connection
// state is mutated here, by the transport layer.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub tracks active socket connections per user. A user may hold several
// connections at once (mobile plus web). When a frame relay is attached the
// hub subscribes to a user's frame channel while it holds connections for
// them, so frames published by peer instances reach the sockets here.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]struct{}

	presence PresenceStore
	relay    FrameRelay
	logger   *zap.Logger
}

func NewHub(presence PresenceStore, relay FrameRelay, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]struct{}),
		presence:    presence,
		relay:       relay,
		logger:      logger,
	}
}

// Register adds a connection for a user, marks the user present, and starts
// receiving relayed frames for them.
func (h *Hub) Register(ctx context.Context, userID string, conn *websocket.Conn) error {
	if conn == nil {
		return fmt.Errorf("connection is required")
	}

	h.mu.Lock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]struct{})
	}
	h.connections[userID][conn] = struct{}{}
	total := len(h.connections[userID])
	h.mu.Unlock()

	h.logger.Info("socket connected",
		zap.String("userId", userID),
		zap.Int("connections", total),
	)

	if total == 1 && h.relay != nil {
		if err := h.relay.Subscribe(ctx, userID); err != nil {
			h.logger.Warn("failed to subscribe to relayed frames", zap.String("userId", userID), zap.Error(err))
		}
	}
	if h.presence != nil {
		if err := h.presence.MarkConnected(ctx, userID); err != nil {
			h.logger.Warn("failed to mark presence", zap.String("userId", userID), zap.Error(err))
		}
	}
	return nil
}

// Unregister drops a connection; when it was the user's last one the presence
// mark is cleared.
func (h *Hub) Unregister(ctx context.Context, userID string, conn *websocket.Conn) {
	h.mu.Lock()
	if conns, ok := h.connections[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
	remaining := len(h.connections[userID])
	h.mu.Unlock()

	h.logger.Info("socket disconnected",
		zap.String("userId", userID),
		zap.Int("connections", remaining),
	)

	if remaining == 0 {
		if h.relay != nil {
			if err := h.relay.Unsubscribe(ctx, userID); err != nil {
				h.logger.Warn("failed to unsubscribe from relayed frames", zap.String("userId", userID), zap.Error(err))
			}
		}
		if h.presence != nil {
			if err := h.presence.MarkDisconnected(ctx, userID); err != nil {
				h.logger.Warn("failed to clear presence", zap.String("userId", userID), zap.Error(err))
			}
		}
	}
}

// Refresh extends the presence mark while a connection stays open.
func (h *Hub) Refresh(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.MarkConnected(ctx, userID); err != nil {
		h.logger.Warn("failed to refresh presence", zap.String("userId", userID), zap.Error(err))
	}
}

// IsConnectedLocally reports whether this instance holds a live connection.
func (h *Hub) IsConnectedLocally(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// ConnectedUsers returns the number of distinct users on this instance.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Push delivers a JSON payload to the user's sockets and reports whether at
// least one write succeeded. Local connections are written directly; when
// none exist the frame is relayed so a peer instance holding the user's
// sockets can deliver it.
func (h *Hub) Push(ctx context.Context, userID string, payload any) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal realtime payload: %w", err)
	}

	if h.deliverLocal(userID, data) {
		return true, nil
	}
	if h.relay == nil {
		return false, nil
	}

	receivers, err := h.relay.Publish(ctx, userID, data)
	if err != nil {
		return false, err
	}
	return receivers > 0, nil
}

// DeliverLocal writes a relayed frame to the user's local connections. The
// relay's receive loop calls it for frames published by peer instances.
func (h *Hub) DeliverLocal(userID string, frame []byte) {
	h.deliverLocal(userID, frame)
}

// deliverLocal writes a frame to every live local connection of the user and
// reports whether at least one write succeeded. Failed connections are pruned.
func (h *Hub) deliverLocal(userID string, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[userID]
	if len(conns) == 0 {
		return false
	}

	sent := 0
	for conn := range conns {
		if writeErr := conn.WriteMessage(websocket.TextMessage, frame); writeErr != nil {
			h.logger.Warn("dropping dead socket connection",
				zap.String("userId", userID),
				zap.Error(writeErr),
			)
			delete(conns, conn)
			continue
		}
		sent++
	}
	if len(conns) == 0 {
		delete(h.connections, userID)
	}

	return sent > 0
}
