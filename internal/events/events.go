package events

import (
	"context"
	"time"
)

// Event is one observable auth state transition, pushed to the UI layer's
// sink: login outcomes, logouts, refreshes, lockouts, session expiry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Phase     string            `json:"phase"`
	AttemptID string            `json:"attempt_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Tenant    string            `json:"tenant,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Event types emitted by the engine.
const (
	TypeLogin          = "login"
	TypeLogout         = "logout"
	TypeRefresh        = "refresh"
	TypeLockout        = "lockout"
	TypeSessionExpired = "session_expired"
	TypeRestore        = "restore"
)

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

// Emit implements Sink.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel for the UI layer to
// drain.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
