package net

import (
	"bytes"
	"encoding/json"
	"math/rand"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"street-sprint/engine/internal/catalog"
	"street-sprint/engine/internal/policy"
	"street-sprint/engine/internal/pool"
	"street-sprint/engine/internal/scheduler"
	"street-sprint/engine/internal/sim"
	"street-sprint/engine/internal/telemetry"
)

func newTestHandler(t *testing.T) (nethttp.Handler, *sim.Runner, *scheduler.Scheduler) {
	t.Helper()
	doc := catalog.Document{
		Version: "test",
		Segments: []catalog.SegmentDefinition{
			{ID: "straight", Length: 50, Difficulty: 1},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "segments.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := catalog.Load(catalog.NewFileSource(path), rand.New(rand.NewSource(1)), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("catalog load: %v", err)
	}

	pools := pool.NewRegistry(telemetry.NopLogger(), telemetry.NopMetrics())
	sched := scheduler.New(scheduler.Deps{
		Catalog: cat,
		Pools:   pools,
		Policy:  policy.New(policy.DefaultConfig()),
	}, scheduler.DefaultConfig())
	runner := sim.NewRunner(sim.Deps{
		Scheduler: sched,
		Catalog:   cat,
	}, sim.DefaultConfig())

	handler := NewHTTPHandler(Deps{
		Runner:    runner,
		Scheduler: sched,
		Pools:     pools,
		Catalog:   cat,
	}, HTTPHandlerConfig{})
	return handler, runner, sched
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/health", nil))
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestDiagnosticsShape(t *testing.T) {
	handler, runner, _ := newTestHandler(t)
	runner.Step(0.5)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/diagnostics", nil))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("diagnostics status %d", rec.Code)
	}

	var payload struct {
		Status string `json:"status"`
		Runner struct {
			Tick uint64 `json:"tick"`
		} `json:"runner"`
		Window struct {
			Window []any `json:"window"`
		} `json:"window"`
		Catalog struct {
			Version  string `json:"version"`
			Segments int    `json:"segments"`
		} `json:"catalog"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.Runner.Tick != 1 {
		t.Fatalf("unexpected diagnostics: %+v", payload)
	}
	if payload.Catalog.Version != "test" || payload.Catalog.Segments != 1 {
		t.Fatalf("unexpected catalog info: %+v", payload.Catalog)
	}
	if len(payload.Window.Window) != 1 {
		t.Fatalf("expected one active segment, got %d", len(payload.Window.Window))
	}
}

func TestRecyclingControlQueuesCommand(t *testing.T) {
	handler, runner, sched := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodPost, "/control/recycling", bytes.NewBufferString(`{"paused":true}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusAccepted {
		t.Fatalf("control status %d: %s", rec.Code, rec.Body.String())
	}

	runner.Step(0.01)
	if !sched.RecyclingPaused() {
		t.Fatalf("queued pause command not applied on tick")
	}
}

func TestControlRejectsGet(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/control/recycling", nil))
	if rec.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestControlRejectsMalformedBody(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodPost, "/control/clear", bytes.NewBufferString(`{not json`))
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClearControlRequiresPositiveDistance(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodPost, "/control/clear", bytes.NewBufferString(`{"distance":0}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
