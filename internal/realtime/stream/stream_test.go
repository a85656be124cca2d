package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/internal/presence"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/httpkit"
	"solar_portal_backend/platform/logger"
)

const testSecret = "stream-secret"

type testConfig struct {
	heartbeat time.Duration
}

func (c testConfig) GetHeartbeatInterval() time.Duration { return c.heartbeat }
func (c testConfig) GetSinkBuffer() int                  { return 16 }
func (c testConfig) GetHTTPAddr() string                 { return "" }
func (c testConfig) GetCORSAllowAll() bool               { return true }
func (c testConfig) GetCORSOrigins() []string            { return nil }
func (c testConfig) GetCORSAllowCreds() bool             { return false }
func (c testConfig) GetJWTAccessSecret() string          { return testSecret }

type harness struct {
	srv      *httptest.Server
	registry *realtime.Registry
	hub      *realtime.Hub
	tracker  *presence.Tracker
}

func newHarness(t *testing.T, heartbeat time.Duration) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	registry := realtime.NewRegistry(log)
	hub := realtime.NewHub(registry, log)
	tracker := presence.NewTracker(hub, log)
	cfg := testConfig{heartbeat: heartbeat}

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewModule(registry, tracker, cfg, log).RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: v1.Group("", httpkit.AuthRequired(cfg)),
		Config:    cfg,
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, registry: registry, hub: hub, tracker: tracker}
}

func token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := httpkit.IssueAccessToken(testSecret, userID, []string{httpkit.RoleAgent}, time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return tok
}

// nextSSE reads one "event:/data:" block.
func nextSSE(t *testing.T, r *bufio.Reader) (string, map[string]interface{}) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			var frame map[string]interface{}
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				t.Fatalf("decoding frame %q: %v", data, err)
			}
			return name, frame
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func presenceStatus(h *harness, subscriberID string) presence.Status {
	rec, err := h.tracker.Get(context.Background(), subscriberID)
	if err != nil {
		return ""
	}
	return rec.Status
}

func TestSSEStreamLifecycle(t *testing.T) {
	h := newHarness(t, time.Hour)
	userID := uuid.New()
	subscriber := userID.String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/api/v1/realtime/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, userID))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	name, frame := nextSSE(t, reader)
	if name != "connected" || frame["eventKind"] != "connected" {
		t.Fatalf("first frame must be connected, got %s %v", name, frame)
	}
	if presenceStatus(h, subscriber) != presence.StatusOnline {
		t.Fatal("opening a stream should mark the subscriber online")
	}
	// the subscriber's own online transition is broadcast to everyone
	name, frame = nextSSE(t, reader)
	if name != "presence" || frame["payload"].(map[string]interface{})["status"] != "online" {
		t.Fatalf("expected online presence frame, got %s %v", name, frame)
	}

	leadID := uuid.New()
	if err := h.hub.Publish(context.Background(), realtime.StageChanged{LeadID: leadID, FromStage: "new", ToStage: "won"}, realtime.Global()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	name, frame = nextSSE(t, reader)
	if name != "stage_changed" {
		t.Fatalf("expected stage_changed, got %s", name)
	}
	payload := frame["payload"].(map[string]interface{})
	if payload["leadId"] != leadID.String() || payload["toStage"] != "won" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := frame["emittedAt"]; !ok {
		t.Fatal("frame is missing emittedAt")
	}

	cancel()
	eventually(t, "connection purge", func() bool { return h.registry.Count() == 0 })
	eventually(t, "offline presence", func() bool { return presenceStatus(h, subscriber) == presence.StatusOffline })
}

func TestSSEHeartbeats(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/api/v1/realtime/stream?token="+token(t, userID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	if name, _ := nextSSE(t, reader); name != "connected" {
		t.Fatalf("expected connected first, got %s", name)
	}
	for i := 0; i < 3; i++ {
		if name, _ := nextSSE(t, reader); name == "heartbeat" {
			return
		}
	}
	t.Fatal("no heartbeat frame received")
}

func TestSSERequiresAuth(t *testing.T) {
	h := newHarness(t, time.Hour)
	resp, err := http.Get(h.srv.URL + "/api/v1/realtime/stream")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func dialWS(t *testing.T, h *harness, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/v1/realtime/ws?token=" + token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketPresenceFramesAndClose(t *testing.T) {
	h := newHarness(t, time.Hour)
	userID := uuid.New()
	subscriber := userID.String()
	conn := dialWS(t, h, userID)

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading connected frame: %v", err)
	}
	if hello["eventKind"] != "connected" {
		t.Fatalf("expected connected frame, got %v", hello)
	}
	connectionID := hello["payload"].(map[string]interface{})["connectionId"].(string)

	if err := conn.WriteJSON(map[string]string{"type": "presence", "status": "busy"}); err != nil {
		t.Fatalf("writing presence frame: %v", err)
	}
	eventually(t, "busy presence", func() bool { return presenceStatus(h, subscriber) == presence.StatusBusy })

	// online then busy, both broadcast back to the same connection
	for _, want := range []string{"online", "busy"} {
		var changed map[string]interface{}
		if err := conn.ReadJSON(&changed); err != nil {
			t.Fatalf("reading presence frame: %v", err)
		}
		if changed["eventKind"] != "presence" || changed["payload"].(map[string]interface{})["status"] != want {
			t.Fatalf("expected %s presence frame, got %v", want, changed)
		}
	}

	other := uuid.New()
	del := func(as uuid.UUID) int {
		req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/v1/realtime/connections/"+connectionID, nil)
		req.Header.Set("Authorization", "Bearer "+token(t, as))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := del(other); code != http.StatusNotFound {
		t.Fatalf("closing someone else's connection should be 404, got %d", code)
	}
	if code := del(userID); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	eventually(t, "offline presence", func() bool { return presenceStatus(h, subscriber) == presence.StatusOffline })
}

func TestReleaseKeepsSubscriberOnlineWhileAnotherStreamLives(t *testing.T) {
	log := logger.Discard()
	registry := realtime.NewRegistry(log)
	tracker := presence.NewTracker(realtime.NewHub(registry, log), log)
	m := NewModule(registry, tracker, testConfig{heartbeat: time.Second}, log)
	ctx := context.Background()
	subscriber := uuid.NewString()
	status := func() presence.Status {
		rec, err := tracker.Get(ctx, subscriber)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		return rec.Status
	}

	first, _, err := m.open(ctx, "sse", subscriber)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, _, err := m.open(ctx, "ws", subscriber)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	m.release(first)
	if status() != presence.StatusOnline {
		t.Fatalf("expected online while the second stream is live, got %s", status())
	}

	// delivery failure already dropped the connection from the registry
	registry.Unregister(second.ID)
	m.release(second)
	if status() != presence.StatusOffline {
		t.Fatalf("expected offline after the last stream, got %s", status())
	}

	third, _, err := m.open(ctx, "sse", subscriber)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m.release(second)
	if status() != presence.StatusOnline {
		t.Fatalf("a stale release must not take a new stream offline, got %s", status())
	}
	m.release(third)
	if status() != presence.StatusOffline {
		t.Fatalf("expected offline, got %s", status())
	}
}
