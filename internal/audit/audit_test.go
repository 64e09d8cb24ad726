package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success", Success: true})
	}
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and tiny buffer")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherNeverDropsCriticalEvents(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Critical:   []string{"refresh_reuse_detected"},
	}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}

	queued := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "refresh_reuse_detected"})
		close(queued)
	}()

	select {
	case <-queued:
		t.Fatal("critical event must wait for room instead of being dropped")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.release)
	select {
	case <-queued:
	case <-time.After(2 * time.Second):
		t.Fatal("critical event never queued")
	}
	d.Close()

	stats := d.Stats()
	if stats.DroppedByType["refresh_reuse_detected"] != 0 {
		t.Fatalf("critical event dropped: %+v", stats)
	}
	if stats.DroppedByType["login_failure"] == 0 || stats.Dropped != stats.DroppedByType["login_failure"] {
		t.Fatalf("expected drops attributed to login_failure, got %+v", stats)
	}
}

func TestDispatcherCriticalEventGivesUpWithCaller(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Critical:   []string{"password_reset_confirm"},
	}, sink)

	// One event occupies the sink, one fills the buffer.
	d.Emit(context.Background(), Event{EventType: "password_reset_confirm"})
	deadline := time.Now().Add(2 * time.Second)
	for d.Stats().Queued != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sink never picked up the first event")
		}
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "password_reset_confirm"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "password_reset_confirm"})

	if got := d.Stats().DroppedByType["password_reset_confirm"]; got == 0 {
		t.Fatal("expected the cancelled caller's event to be counted as dropped")
	}
	close(sink.release)
	d.Close()
}

type panickySink struct {
	delivered *[]string
}

func (s panickySink) Emit(_ context.Context, e Event) {
	if e.EventType == "boom" {
		panic("sink failure")
	}
	*s.delivered = append(*s.delivered, e.EventType)
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	var delivered []string
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, panickySink{delivered: &delivered})

	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()
	d.Close()

	if len(delivered) != 2 || delivered[0] != "login_success" || delivered[1] != "logout" {
		t.Fatalf("unexpected deliveries %v", delivered)
	}
	if got := d.Stats().SinkPanics; got != 1 {
		t.Fatalf("expected 1 sink panic, got %d", got)
	}
}

func TestDispatcherStatsQueued(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Stats().Queued != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 queued behind the blocked sink, got %d", d.Stats().Queued)
		}
		time.Sleep(time.Millisecond)
	}
	close(sink.release)
	d.Close()
	if got := d.Stats().Queued; got != 0 {
		t.Fatalf("expected empty queue after close, got %d", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports no drops")
	}
	if st := d.Stats(); st.Queued != 0 || st.DroppedByType == nil {
		t.Fatalf("unexpected nil dispatcher stats %+v", st)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{
		Timestamp: time.Unix(0, 0).UTC(),
		EventType: "refresh_replay",
		UserID:    "u1",
		Error:     "invalid token",
	})

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EventType != "refresh_replay" || got.UserID != "u1" || got.Success {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid credentials", Metadata: map[string]string{"identifier": "alice"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"INFO"`) || !strings.Contains(lines[0], `"user_id":"u1"`) {
		t.Fatalf("unexpected success line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"WARN"`) || !strings.Contains(lines[1], `"identifier":"alice"`) {
		t.Fatalf("unexpected failure line: %s", lines[1])
	}
}
