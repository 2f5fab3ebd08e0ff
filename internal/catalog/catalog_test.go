package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"street-sprint/engine/internal/telemetry"
)

type memorySource struct {
	path string
	data []byte
	err  error
}

func (m memorySource) Load() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]byte(nil), m.data...), nil
}

func (m memorySource) Path() string {
	return m.path
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func documentSource(t *testing.T, doc Document) memorySource {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return memorySource{path: "inline.json", data: data}
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestLoadParsesDocument(t *testing.T) {
	want := SegmentDefinition{
		ID:         "straight-easy",
		Name:       "Easy Straight",
		Length:     120,
		Difficulty: 1,
		Obstacles: []ObstaclePlacement{
			{Category: "fence", Lane: 1, Offset: 40},
		},
		CoinGroups: []CoinGroupPlacement{
			{Lane: 0, Offset: 10, Count: 5, Spacing: 4},
		},
		SupportItems: []SupportItemPlacement{
			{Lane: 2, Offset: 80},
		},
	}
	src := documentSource(t, Document{Version: "1.2", Count: 1, Segments: []SegmentDefinition{want}})

	c, err := Load(src, testRand(), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 segment, got %d", c.Len())
	}
	if c.Version() != "1.2" {
		t.Fatalf("expected version 1.2, got %q", c.Version())
	}

	got, ok := c.Segment(1)
	if !ok {
		t.Fatalf("expected a segment")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("segment mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFailsOnMissingSource(t *testing.T) {
	src := memorySource{path: "missing.json", err: errors.New("no such file")}
	if _, err := Load(src, testRand(), telemetry.NopLogger()); err == nil {
		t.Fatalf("expected load error for missing source")
	}
}

func TestLoadFailsOnMalformedDocument(t *testing.T) {
	src := memorySource{path: "broken.json", data: []byte(`{"version": "1", "segments": [`)}
	if _, err := Load(src, testRand(), telemetry.NopLogger()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFailsOnEmptyCatalog(t *testing.T) {
	src := documentSource(t, Document{Version: "1"})
	if _, err := Load(src, testRand(), telemetry.NopLogger()); err == nil {
		t.Fatalf("expected error for empty segment list")
	}
}

func TestValidationFindingsDoNotAbortLoad(t *testing.T) {
	logger := &captureLogger{}
	src := documentSource(t, Document{
		Count: 3,
		Segments: []SegmentDefinition{
			{ID: "bad-lane", Length: 50, Difficulty: 1, Obstacles: []ObstaclePlacement{{Category: "car", Lane: 7, Offset: 10}}},
			{ID: "bad-length", Length: 0, Difficulty: 1},
			{Length: 30, Difficulty: 0},
		},
	})

	c, err := Load(src, testRand(), logger)
	if err != nil {
		t.Fatalf("Load failed despite permissive validation: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected all 3 segments to load, got %d", c.Len())
	}
	if c.Validate() {
		t.Fatalf("expected Validate to report findings")
	}
	for _, want := range []string{"missing version tag", "lane 7 out of range", "non-positive length", "missing id", "count hint 3"} {
		if !logger.contains(want) {
			t.Fatalf("expected a logged finding containing %q, got %v", want, logger.lines)
		}
	}
}

func TestSegmentFiltersByDifficulty(t *testing.T) {
	easy := SegmentDefinition{ID: "easy", Length: 50, Difficulty: 1}
	hard := SegmentDefinition{ID: "hard", Length: 50, Difficulty: 3}
	src := documentSource(t, Document{Version: "1", Segments: []SegmentDefinition{easy, hard}})

	c, err := Load(src, testRand(), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		seg, ok := c.Segment(1)
		if !ok {
			t.Fatalf("expected a segment")
		}
		if seg.ID != "easy" {
			t.Fatalf("iteration %d: maxDifficulty=1 returned %q", i, seg.ID)
		}
	}
}

func TestSegmentFallsBackToWholeCatalog(t *testing.T) {
	src := documentSource(t, Document{Version: "1", Segments: []SegmentDefinition{
		{ID: "hard-a", Length: 50, Difficulty: 4},
		{ID: "hard-b", Length: 50, Difficulty: 5},
	}})

	c, err := Load(src, testRand(), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seg, ok := c.Segment(1)
		if !ok {
			t.Fatalf("fallback must never fail on a non-empty catalog")
		}
		seen[seg.ID] = true
	}
	if !seen["hard-a"] || !seen["hard-b"] {
		t.Fatalf("expected uniform fallback over the whole catalog, saw %v", seen)
	}
}

func TestReloadFromSwapsSource(t *testing.T) {
	first := documentSource(t, Document{Version: "1", Segments: []SegmentDefinition{{ID: "one", Length: 10, Difficulty: 1}}})
	c, err := Load(first, testRand(), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	second := documentSource(t, Document{Version: "2", Segments: []SegmentDefinition{
		{ID: "two-a", Length: 10, Difficulty: 1},
		{ID: "two-b", Length: 10, Difficulty: 1},
	}})
	second.path = "second.json"
	if err := c.ReloadFrom(second); err != nil {
		t.Fatalf("ReloadFrom failed: %v", err)
	}
	if c.Len() != 2 || c.Version() != "2" || c.Path() != "second.json" {
		t.Fatalf("reload did not swap document: len=%d version=%q path=%q", c.Len(), c.Version(), c.Path())
	}
}

func TestReloadKeepsPreviousDocumentOnError(t *testing.T) {
	first := documentSource(t, Document{Version: "1", Segments: []SegmentDefinition{{ID: "one", Length: 10, Difficulty: 1}}})
	c, err := Load(first, testRand(), telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	bad := memorySource{path: "bad.json", err: errors.New("gone")}
	if err := c.ReloadFrom(bad); err == nil {
		t.Fatalf("expected reload error")
	}
	if c.Len() != 1 || c.Version() != "1" {
		t.Fatalf("failed reload must keep previous document")
	}
}
