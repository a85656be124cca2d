package realtime

import (
	"errors"
	"sync"
)

var (
	// ErrSinkFull is returned when a sink cannot take another event without blocking.
	ErrSinkFull = errors.New("realtime: sink buffer full")
	// ErrSinkClosed is returned when writing to a closed sink.
	ErrSinkClosed = errors.New("realtime: sink closed")
)

// Sink is one client connection's outbound side. Write must not block:
// a sink that cannot accept an event returns an error and is dropped.
type Sink interface {
	Write(Event) error
	Close() error
}

// ChannelSink buffers events for a transport goroutine to drain.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChannelSink creates a sink holding at most buffer undelivered events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- e:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close is idempotent. Buffered events stay readable until drained.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Events is closed once the sink is closed and drained.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

var _ Sink = (*ChannelSink)(nil)
