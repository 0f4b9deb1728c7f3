package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/observability"
	"github.com/easypark/notification-service/internal/realtime"
)

const presenceRefreshInterval = 30 * time.Second

// RegisterWebsocketRoutes mounts the realtime endpoint. A connected socket
// makes the user eligible for realtime delivery; presence is refreshed while
// the read loop lives.
func RegisterWebsocketRoutes(router fiber.Router, hub *realtime.Hub, metrics *observability.Metrics, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws/:userId", websocket.New(func(conn *websocket.Conn) {
		userID := strings.TrimSpace(conn.Params("userId"))
		if userID == "" {
			_ = conn.Close()
			return
		}

		ctx := context.Background()
		if err := hub.Register(ctx, userID, conn); err != nil {
			logger.Warn("websocket register failed",
				zap.String("userId", userID),
				zap.Error(err),
			)
			_ = conn.Close()
			return
		}
		if metrics != nil {
			metrics.SetConnectedUsers(hub.ConnectedUsers())
		}

		defer func() {
			hub.Unregister(ctx, userID, conn)
			if metrics != nil {
				metrics.SetConnectedUsers(hub.ConnectedUsers())
			}
			_ = conn.Close()
		}()

		done := make(chan struct{})
		go refreshLoop(ctx, hub, userID, done)

		logger.Info("websocket connected", zap.String("userId", userID))
		readLoop(conn)
		close(done)
		logger.Info("websocket disconnected", zap.String("userId", userID))
	}))
}

// readLoop drains client frames so pings and close frames are processed.
func readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// refreshLoop keeps the cross-instance presence mark alive while the
// connection is open. The refresh interval stays well under the mark's TTL.
func refreshLoop(ctx context.Context, hub *realtime.Hub, userID string, done <-chan struct{}) {
	ticker := time.NewTicker(presenceRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			hub.Refresh(ctx, userID)
		}
	}
}
