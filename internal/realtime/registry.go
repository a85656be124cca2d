package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/logger"
)

// ConnectionInfo describes a registered connection.
type ConnectionInfo struct {
	ID           uuid.UUID `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	OpenedAt     time.Time `json:"openedAt"`
}

type connection struct {
	ConnectionInfo
	sink Sink
}

// Registry maps connection ids and subscriber ids to live sinks. Both
// indices change under the same lock.
type Registry struct {
	mu           sync.RWMutex
	conns        map[uuid.UUID]*connection
	bySubscriber map[string]map[uuid.UUID]*connection

	log     *logger.Logger
	metrics *Metrics
	now     func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRegistryMetrics reports connection counts and drops to m.
func WithRegistryMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithRegistryClock replaces time.Now.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:        make(map[uuid.UUID]*connection),
		bySubscriber: make(map[string]map[uuid.UUID]*connection),
		log:          log,
		metrics:      NewMetrics(nil),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds sink under a fresh connection id.
func (r *Registry) Register(subscriberID string, sink Sink) (uuid.UUID, error) {
	info, err := r.newInfo(subscriberID)
	if err != nil {
		return uuid.Nil, err
	}
	if sink == nil {
		return uuid.Nil, apperr.Validation("sink is required")
	}
	r.add(info, sink)
	return info.ID, nil
}

// Open creates a ChannelSink, queues the connected frame on it and only
// then registers it, so connected is always the first frame a client reads.
func (r *Registry) Open(subscriberID string, buffer int, heartbeat time.Duration) (ConnectionInfo, *ChannelSink, error) {
	info, err := r.newInfo(subscriberID)
	if err != nil {
		return ConnectionInfo{}, nil, err
	}
	sink := NewChannelSink(buffer)
	hello := NewEvent(Connected{
		ConnectionID:      info.ID,
		SubscriberID:      subscriberID,
		HeartbeatInterval: int(heartbeat / time.Second),
	}, r.now())
	if err := sink.Write(hello); err != nil {
		return ConnectionInfo{}, nil, err
	}
	r.add(info, sink)
	return info, sink, nil
}

func (r *Registry) newInfo(subscriberID string) (ConnectionInfo, error) {
	if subscriberID == "" {
		return ConnectionInfo{}, apperr.Validation("subscriber id is required")
	}
	return ConnectionInfo{ID: uuid.New(), SubscriberID: subscriberID, OpenedAt: r.now().UTC()}, nil
}

func (r *Registry) add(info ConnectionInfo, sink Sink) {
	conn := &connection{ConnectionInfo: info, sink: sink}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	subs, ok := r.bySubscriber[info.SubscriberID]
	if !ok {
		subs = make(map[uuid.UUID]*connection)
		r.bySubscriber[info.SubscriberID] = subs
	}
	subs[conn.ID] = conn
	r.mu.Unlock()

	r.metrics.connections.Inc()
}

// Unregister removes a connection and closes its sink. Unknown ids are a
// no-op; the return value reports whether anything was removed. Transports
// notice a closed sink and tear down their side.
func (r *Registry) Unregister(connectionID uuid.UUID) bool {
	return r.remove(connectionID, "closed")
}

// Release unregisters the connection if it is still present and reports
// whether the subscriber has no connections left. Removal and the count are
// taken under one lock, so a concurrent Open is either counted or not yet
// registered.
func (r *Registry) Release(info ConnectionInfo) bool {
	r.mu.Lock()
	conn := r.detachLocked(info.ID)
	last := len(r.bySubscriber[info.SubscriberID]) == 0
	r.mu.Unlock()

	if conn != nil {
		r.closed(conn, "closed")
	}
	return last
}

func (r *Registry) remove(connectionID uuid.UUID, reason string) bool {
	r.mu.Lock()
	conn := r.detachLocked(connectionID)
	r.mu.Unlock()

	if conn == nil {
		return false
	}
	r.closed(conn, reason)
	return true
}

func (r *Registry) detachLocked(connectionID uuid.UUID) *connection {
	conn, ok := r.conns[connectionID]
	if !ok {
		return nil
	}
	delete(r.conns, connectionID)
	if subs := r.bySubscriber[conn.SubscriberID]; subs != nil {
		delete(subs, connectionID)
		if len(subs) == 0 {
			delete(r.bySubscriber, conn.SubscriberID)
		}
	}
	return conn
}

func (r *Registry) closed(conn *connection, reason string) {
	_ = conn.sink.Close()
	r.metrics.connections.Dec()
	if r.log != nil {
		r.log.StreamClosed(conn.ID.String(), conn.SubscriberID, reason)
	}
}

// SendToConnection delivers e to one connection. A sink that rejects the
// event is unregistered. Reports whether the event was accepted.
func (r *Registry) SendToConnection(connectionID uuid.UUID, e Event) bool {
	r.mu.RLock()
	conn, ok := r.conns[connectionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.deliverAll([]*connection{conn}, e) == 1
}

// SendToSubscriber delivers e to every connection of subscriberID and
// returns how many accepted it.
func (r *Registry) SendToSubscriber(subscriberID string, e Event) int {
	return r.deliverAll(r.subscriberTargets(subscriberID), e)
}

// Broadcast delivers e to every connection matching predicate, or to all
// connections when predicate is nil.
func (r *Registry) Broadcast(e Event, predicate func(ConnectionInfo) bool) int {
	return r.deliverAll(r.matchingTargets(predicate), e)
}

func (r *Registry) subscriberTargets(subscriberID string) []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]*connection, 0, len(r.bySubscriber[subscriberID]))
	for _, conn := range r.bySubscriber[subscriberID] {
		targets = append(targets, conn)
	}
	return targets
}

func (r *Registry) matchingTargets(predicate func(ConnectionInfo) bool) []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make([]*connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if predicate == nil || predicate(conn.ConnectionInfo) {
			targets = append(targets, conn)
		}
	}
	return targets
}

func (r *Registry) deliverAll(targets []*connection, e Event) int {
	delivered, failed := r.writeAll(targets, e)
	r.dropAll(failed, e.Kind)
	return delivered
}

type failedWrite struct {
	conn *connection
	err  error
}

// writeAll only writes; failed connections are returned so callers that
// hold their own lock can drop them after releasing it.
func (r *Registry) writeAll(targets []*connection, e Event) (int, []failedWrite) {
	delivered := 0
	var failed []failedWrite
	for _, conn := range targets {
		if err := conn.sink.Write(e); err != nil {
			failed = append(failed, failedWrite{conn: conn, err: err})
			continue
		}
		delivered++
		r.metrics.deliveries.WithLabelValues(string(e.Kind)).Inc()
	}
	return delivered, failed
}

func (r *Registry) dropAll(failed []failedWrite, kind Kind) {
	for _, f := range failed {
		r.metrics.drops.Inc()
		if r.log != nil {
			r.log.DeliveryDropped(f.conn.ID.String(), string(kind), f.err)
		}
		r.remove(f.conn.ID, "delivery failed")
	}
}

// Connections lists a subscriber's live connections.
func (r *Registry) Connections(subscriberID string) []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionInfo, 0, len(r.bySubscriber[subscriberID]))
	for _, conn := range r.bySubscriber[subscriberID] {
		out = append(out, conn.ConnectionInfo)
	}
	return out
}

// Lookup returns the connection with the given id.
func (r *Registry) Lookup(connectionID uuid.UUID) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connectionID]
	if !ok {
		return ConnectionInfo{}, false
	}
	return conn.ConnectionInfo, true
}

func (r *Registry) IsOnline(subscriberID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySubscriber[subscriberID]) > 0
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close unregisters every connection. Used on server shutdown.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.remove(id, "shutdown")
	}
}
