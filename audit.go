package sessionkit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the Manager. ForceLogout exists purely so the
// log can tell a user-initiated logout from an expiry-triggered one; the
// distinction lives here, not in the session semantics.
const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventForcedLogout       = "forced_logout"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshRejected    = "refresh_rejected"
	auditEventRefreshUnavailable = "refresh_unavailable"
	auditEventSessionRestored    = "session_restored"
	auditEventStorageCorrupt     = "storage_corrupt"
	auditEventProfileSynced      = "profile_synced"
	auditEventProfileUpdated     = "profile_updated"
)

type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	InstanceID string            `json:"instance_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives session lifecycle events. Implementations must tolerate
// concurrent Emit calls; slow sinks are shielded from session operations by
// the dispatcher's buffer.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event. It is the sink of last resort when audit is
// enabled without a destination.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to a consumer over a buffered channel, for callers
// that want to process the trail in their own goroutine.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit delivers the event unless the channel stays full past ctx.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events is the consumer side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes each event as one JSON line, suitable for a log file
// or stderr.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

// Emit encodes the event. Encoding failures are dropped silently; an audit
// line is never worth failing a session operation for.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
