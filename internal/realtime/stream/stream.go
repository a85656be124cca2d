// Package stream adapts Server-Sent Events and WebSocket clients to the
// realtime registry. Each open stream owns one ChannelSink; when the client
// goes away the connection is purged and, if it was the subscriber's last
// one, presence flips to offline.
package stream

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/internal/presence"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/httpkit"
	"solar_portal_backend/platform/logger"
)

// Config is what the stream module reads from the application config.
type Config interface {
	config.RealtimeConfig
	config.HTTPConfig
}

type Module struct {
	registry  *realtime.Registry
	tracker   *presence.Tracker
	log       *logger.Logger
	heartbeat time.Duration
	buffer    int
	upgrader  websocket.Upgrader
	now       func() time.Time
}

func NewModule(registry *realtime.Registry, tracker *presence.Tracker, cfg Config, log *logger.Logger) *Module {
	m := &Module{
		registry:  registry,
		tracker:   tracker,
		log:       log,
		heartbeat: cfg.GetHeartbeatInterval(),
		buffer:    cfg.GetSinkBuffer(),
		now:       time.Now,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg),
	}
	return m
}

func (m *Module) Name() string { return "realtime" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/realtime")
	g.GET("/stream", m.ServeSSE)
	g.GET("/ws", m.ServeWS)
	g.GET("/connections", m.listConnections)
	g.DELETE("/connections/:id", m.closeConnection)
}

// open registers the sink and marks the subscriber online.
func (m *Module) open(ctx context.Context, transport, subscriberID string) (realtime.ConnectionInfo, *realtime.ChannelSink, error) {
	info, sink, err := m.registry.Open(subscriberID, m.buffer, m.heartbeat)
	if err != nil {
		return realtime.ConnectionInfo{}, nil, err
	}
	m.log.StreamOpened(transport, info.ID.String(), subscriberID)
	m.tracker.Heartbeat(ctx, subscriberID)
	return info, sink, nil
}

// release purges the connection. It runs with a fresh context because the
// request context is already done by then.
func (m *Module) release(info realtime.ConnectionInfo) {
	if !m.registry.Release(info) {
		return
	}
	ctx := context.Background()
	m.tracker.SetOffline(ctx, info.SubscriberID)
	// a stream registered after Release may have heartbeated before
	// SetOffline landed
	if m.registry.IsOnline(info.SubscriberID) {
		m.tracker.Heartbeat(ctx, info.SubscriberID)
	}
}

func (m *Module) beat(ctx context.Context, info realtime.ConnectionInfo) bool {
	if !m.registry.SendToConnection(info.ID, realtime.NewEvent(realtime.Heartbeat{}, m.now())) {
		return false
	}
	m.tracker.Heartbeat(ctx, info.SubscriberID)
	return true
}

// ServeSSE streams events as text/event-stream. The event name is the
// frame kind and the data is the JSON envelope.
func (m *Module) ServeSSE(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	ctx := c.Request.Context()

	info, sink, err := m.open(ctx, "sse", identity.SubscriberID())
	if httpkit.HandleError(c, err) {
		return
	}
	defer m.release(info)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sink.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Kind), event)
			c.Writer.Flush()
		case <-ticker.C:
			if !m.beat(ctx, info) {
				return
			}
		}
	}
}

func (m *Module) listConnections(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	httpkit.OK(c, gin.H{"items": m.registry.Connections(identity.SubscriberID())})
}

// closeConnection lets a subscriber close one of its own streams.
func (m *Module) closeConnection(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid connection id"))
		return
	}
	info, ok := m.registry.Lookup(id)
	if !ok || info.SubscriberID != identity.SubscriberID() {
		httpkit.HandleError(c, apperr.NotFound("connection not found"))
		return
	}
	m.registry.Unregister(id)
	c.Status(http.StatusNoContent)
}

func originChecker(cfg config.HTTPConfig) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || cfg.GetCORSAllowAll() {
			return true
		}
		if slices.Contains(cfg.GetCORSOrigins(), origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

var _ apphttp.Module = (*Module)(nil)
