package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Kind names an audited action.
type Kind string

const (
	KindLoginTrusted     Kind = "login_trusted"
	KindLogin            Kind = "login"
	KindLogout           Kind = "logout"
	KindLoginFailed      Kind = "login_failed"
	KindCodeIssued       Kind = "second_factor_issued"
	KindRefreshReuse     Kind = "refresh_reuse"
	KindSessionsRevoked  Kind = "sessions_revoked"
	KindDevicesRevoked   Kind = "trusted_devices_revoked"
	KindAccountCreated   Kind = "account_created"
	KindAccountActivated Kind = "account_activated"
	KindAccountStatus    Kind = "account_status_changed"
	KindPasswordChanged  Kind = "password_changed"
	KindPasswordReset    Kind = "password_reset"
)

// Event is one audit record.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	Kind        Kind              `json:"kind"`
	ActorID     string            `json:"actor_id,omitempty"`
	ActorRole   string            `json:"actor_role,omitempty"`
	Description string            `json:"description"`
	IP          string            `json:"ip,omitempty"`
	Success     bool              `json:"success"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink persists or forwards audit events. Errors are reported to the
// dispatcher, which logs and drops them.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Record(context.Context, Event) error { return nil }

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Record(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Record(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.writer.Write(data)
	return err
}
