package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"solar_portal_backend/internal/presence"
	"solar_portal_backend/platform/httpkit"
)

const (
	writeWait      = 10 * time.Second
	maxClientFrame = 4096
)

// clientFrame is what a WebSocket client may send.
type clientFrame struct {
	Type   string          `json:"type"`
	Status presence.Status `json:"status,omitempty"`
}

// ServeWS upgrades to a WebSocket. Outbound frames are the same JSON
// envelopes the SSE stream carries; inbound frames are heartbeats and
// presence changes.
func (m *Module) ServeWS(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	subscriberID := identity.SubscriberID()

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		m.log.Warn("websocket upgrade failed", "subscriberId", subscriberID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info, sink, err := m.open(ctx, "ws", subscriberID)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registration failed"), time.Now().Add(writeWait))
		return
	}
	defer m.release(info)

	readDeadline := 3 * m.heartbeat
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	go m.readPump(ctx, cancel, conn, subscriberID, readDeadline)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sink.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if !m.beat(ctx, info) {
				return
			}
		}
	}
}

func (m *Module) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, subscriberID string, readDeadline time.Duration) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "heartbeat":
			m.tracker.Heartbeat(ctx, subscriberID)
		case "presence":
			if _, err := m.tracker.Touch(ctx, subscriberID, frame.Status); err != nil {
				m.log.Debug("ignored presence frame", "subscriberId", subscriberID, "error", err)
			}
		}
	}
}
