package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingSink struct{ panicOn Kind }

func (s failingSink) Record(_ context.Context, e Event) error {
	if e.Kind == s.panicOn {
		panic("boom")
	}
	return errors.New("sink offline")
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{BufferSize: 4}, sink, nil)

	d.Emit(context.Background(), Event{Kind: KindLogin, ActorID: "u1"})
	d.Emit(context.Background(), Event{Kind: KindLogout, ActorID: "u1"})
	d.Close()

	first := <-sink.Events()
	second := <-sink.Events()
	if first.Kind != KindLogin || second.Kind != KindLogout {
		t.Fatalf("unexpected order: %s, %s", first.Kind, second.Kind)
	}
}

func TestDispatcherSwallowsSinkFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	d := NewDispatcher(Config{BufferSize: 2}, failingSink{panicOn: KindLogout}, logger)

	d.Emit(context.Background(), Event{Kind: KindLogin})
	d.Emit(context.Background(), Event{Kind: KindLogout})
	d.Close()

	if d.Failed() != 2 {
		t.Fatalf("failed = %d, want 2", d.Failed())
	}
	if !strings.Contains(logs.String(), "audit sink failed") || !strings.Contains(logs.String(), "audit sink panicked") {
		t.Fatalf("expected both failures logged, got %s", logs.String())
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Record(context.Context, Event) error {
	<-s.release
	return nil
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{BufferSize: 1, DropIfFull: true}, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// One in flight, one buffered, the rest dropped.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Kind: KindLogin})
		time.Sleep(5 * time.Millisecond)
	}
	close(sink.release)
	d.Close()

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
}

func TestEmitAfterCloseIsNoop(t *testing.T) {
	d := NewDispatcher(Config{}, nil, nil)
	d.Close()
	d.Emit(context.Background(), Event{Kind: KindLogin})
	d.Close()

	var nilDispatcher *Dispatcher
	nilDispatcher.Emit(context.Background(), Event{})
	if nilDispatcher.Dropped() != 0 || nilDispatcher.Failed() != 0 {
		t.Fatal("nil dispatcher counters should be zero")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	ts := time.Unix(1_700_000_000, 0).UTC()
	if err := sink.Record(context.Background(), Event{Timestamp: ts, Kind: KindLoginTrusted, ActorID: "u1", ActorRole: "engineer", Success: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["kind"] != "login_trusted" || decoded["actor_role"] != "engineer" {
		t.Fatalf("unexpected line: %s", buf.String())
	}
}
