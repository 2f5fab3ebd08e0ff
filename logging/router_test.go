package logging_test

import (
	"context"
	"testing"
	"time"

	"street-sprint/engine/logging"
	"street-sprint/engine/logging/sinks"
)

func waitForEvents(t *testing.T, sink *sinks.Memory, want int) []logging.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := sink.Events()
		if len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sink received %d events, want %d", len(sink.Events()), want)
	return nil
}

func TestRouterForwardsToAllSinks(t *testing.T) {
	first := sinks.NewMemory()
	second := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "first", Sink: first},
		{Name: "second", Sink: second},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{
		Type:     "spawn.segment_spawned",
		Tick:     3,
		Severity: logging.SeverityInfo,
	})

	for _, sink := range []*sinks.Memory{first, second} {
		events := waitForEvents(t, sink, 1)
		if events[0].Type != "spawn.segment_spawned" || events[0].Tick != 3 {
			t.Fatalf("unexpected event: %+v", events[0])
		}
		if events[0].Time.IsZero() {
			t.Fatalf("router must stamp event time")
		}
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	sink := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{
		{Name: "memory", Sink: sink},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{Type: "a", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "b", Severity: logging.SeverityWarn})

	events := waitForEvents(t, sink, 1)
	if len(events) != 1 || events[0].Type != "b" {
		t.Fatalf("severity filter failed: %+v", events)
	}
}

func TestRouterMergesConfiguredFields(t *testing.T) {
	sink := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"runId": "run-1"}
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{
		{Name: "memory", Sink: sink},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{
		Type:     "spawn.segment_spawned",
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"name": "Fence Slalom"},
	})

	events := waitForEvents(t, sink, 1)
	if events[0].Extra["runId"] != "run-1" || events[0].Extra["name"] != "Fence Slalom" {
		t.Fatalf("fields not merged: %+v", events[0].Extra)
	}
}

func TestRouterStampsRunID(t *testing.T) {
	sink := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.RunID = "run-7"
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{
		{Name: "memory", Sink: sink},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{
		Type:     "spawn.segment_spawned",
		Severity: logging.SeverityInfo,
	})
	router.Publish(context.Background(), logging.Event{
		Type:     "spawn.segment_recycled",
		Severity: logging.SeverityInfo,
		RunID:    "replayed-run",
	})

	events := waitForEvents(t, sink, 2)
	if events[0].RunID != "run-7" {
		t.Fatalf("router must stamp the configured run ID, got %q", events[0].RunID)
	}
	if events[1].RunID != "replayed-run" {
		t.Fatalf("an explicit run ID must survive, got %q", events[1].RunID)
	}
}

func TestRouterDropsUntypedEvents(t *testing.T) {
	sink := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "memory", Sink: sink},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "typed", Severity: logging.SeverityInfo})

	events := waitForEvents(t, sink, 1)
	if len(events) != 1 || events[0].Type != "typed" {
		t.Fatalf("untyped event leaked: %+v", events)
	}
}

func TestRouterCloseIsIdempotentAndDrains(t *testing.T) {
	sink := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "memory", Sink: sink},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	for i := 0; i < 10; i++ {
		router.Publish(context.Background(), logging.Event{Type: "burst", Severity: logging.SeverityInfo})
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if got := len(sink.Events()); got == 0 {
		t.Fatalf("close must drain queued events, sink has %d", got)
	}

	// Publishing after close is a no-op rather than a panic.
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityInfo})
}
