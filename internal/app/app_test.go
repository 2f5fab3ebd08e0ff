package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"street-sprint/engine/internal/net/ws"
	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/logging"
)

func sinkNames(sinks []logging.NamedSink) []string {
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name)
	}
	return names
}

func TestBuildSinksHonorsEnabledSinks(t *testing.T) {
	hub := ws.NewHub(telemetry.NopLogger())

	sinks, err := buildSinks(DefaultConfig().Logging, hub)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	got := sinkNames(sinks)
	if len(got) != 2 || got[0] != "console" || got[1] != "broadcast" {
		t.Fatalf("default config must build console and broadcast, got %v", got)
	}

	consoleOnly := logging.DefaultConfig()
	consoleOnly.EnabledSinks = []string{"console"}
	sinks, err = buildSinks(consoleOnly, hub)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if got := sinkNames(sinks); len(got) != 1 || got[0] != "console" {
		t.Fatalf("disabled broadcast sink must not be built, got %v", got)
	}
}

func TestBuildSinksJSONRequiresFilePath(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"json"}
	if _, err := buildSinks(cfg, nil); err == nil {
		t.Fatalf("json sink without a file path must fail")
	}

	cfg.JSON.FilePath = filepath.Join(t.TempDir(), "events.jsonl")
	sinks, err := buildSinks(cfg, nil)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if got := sinkNames(sinks); len(got) != 1 || got[0] != "json" {
		t.Fatalf("expected only the json sink, got %v", got)
	}
	defer sinks[0].Sink.Close(context.Background())
	if _, err := os.Stat(cfg.JSON.FilePath); err != nil {
		t.Fatalf("json sink must create its event log: %v", err)
	}
}
