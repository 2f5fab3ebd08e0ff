package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"street-sprint/engine/internal/telemetry"
)

// Lane bounds shared with the rest of the engine. Three lanes, center is 1.
const (
	LaneMin = 0
	LaneMax = 2
)

// Document is the authored content source as it appears on disk: a version
// tag, a total-count hint, and the ordered segment list. The struct is
// exported so tooling (e.g. schema generators) can reflect over the
// configuration contract shared with designers.
type Document struct {
	Version  string              `json:"version" jsonschema:"title=Catalog Version,description=Authoring tool version tag.,minLength=1,required"`
	Count    int                 `json:"count" jsonschema:"title=Segment Count Hint,description=Expected number of segment definitions."`
	Segments []SegmentDefinition `json:"segments" jsonschema:"title=Segment Definitions,description=Ordered list of authored track segments.,required"`
}

// SegmentDefinition is a single authored slice of track. Immutable at
// runtime; the engine never writes back into the catalog.
type SegmentDefinition struct {
	ID           string                 `json:"id" jsonschema:"title=Segment ID,pattern=^[a-z0-9-]+$,minLength=1,required"`
	Name         string                 `json:"name" jsonschema:"title=Display Name"`
	Length       float64                `json:"length" jsonschema:"title=Segment Length,description=Forward distance covered by the segment.,minimum=1,required"`
	Difficulty   int                    `json:"difficulty" jsonschema:"title=Difficulty Tier,minimum=1"`
	SafeZone     bool                   `json:"safeZone,omitempty" jsonschema:"title=Safe Zone,description=Suppresses hazard spawning for the whole segment."`
	Obstacles    []ObstaclePlacement    `json:"obstacles,omitempty"`
	CoinGroups   []CoinGroupPlacement   `json:"coinGroups,omitempty"`
	SupportItems []SupportItemPlacement `json:"supportItems,omitempty"`
}

// ObstaclePlacement positions one obstacle variant inside a segment.
type ObstaclePlacement struct {
	Category string  `json:"category" jsonschema:"title=Variant Category,minLength=1,required"`
	Lane     int     `json:"lane" jsonschema:"minimum=0,maximum=2"`
	Offset   float64 `json:"offset" jsonschema:"minimum=0"`
	Height   float64 `json:"height,omitempty"`
}

// CoinGroupPlacement expands to a line of coins at spawn time.
type CoinGroupPlacement struct {
	Lane    int     `json:"lane" jsonschema:"minimum=0,maximum=2"`
	Offset  float64 `json:"offset" jsonschema:"minimum=0"`
	Count   int     `json:"count" jsonschema:"minimum=1"`
	Spacing float64 `json:"spacing" jsonschema:"minimum=0"`
}

// SupportItemPlacement marks a slot whose concrete item kind is chosen from a
// weighted set at spawn time.
type SupportItemPlacement struct {
	Lane   int     `json:"lane" jsonschema:"minimum=0,maximum=2"`
	Offset float64 `json:"offset" jsonschema:"minimum=0"`
}

// Source abstracts where the catalog document comes from. Tests supply
// in-memory sources while production code uses FileSource.
type Source interface {
	Load() ([]byte, error)
	Path() string
}

type FileSource struct {
	path string
}

func NewFileSource(path string) FileSource {
	return FileSource{path: strings.TrimSpace(path)}
}

func (f FileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f FileSource) Path() string {
	return f.path
}

// Catalog indexes segment definitions by difficulty and answers random
// selection queries. Load failures are fatal to engine initialization;
// validation findings are logged per field and never abort a load.
type Catalog struct {
	mu     sync.RWMutex
	source Source
	doc    Document
	rng    *rand.Rand
	logger telemetry.Logger
}

// Load reads and parses the source, validates the document, and returns a
// usable catalog. The returned error is nil only when the document parsed;
// partially-invalid documents load with findings logged.
func Load(src Source, rng *rand.Rand, logger telemetry.Logger) (*Catalog, error) {
	if src == nil {
		return nil, errors.New("catalog: nil source")
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	c := &Catalog{source: src, rng: rng, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-parses the current source. On error the previous document is
// kept, so a bad hot reload never empties a running catalog.
func (c *Catalog) Reload() error {
	c.mu.RLock()
	src := c.source
	c.mu.RUnlock()
	return c.ReloadFrom(src)
}

// ReloadFrom swaps the catalog source and re-parses. Used by the external
// "reload catalog from named source" signal.
func (c *Catalog) ReloadFrom(src Source) error {
	if src == nil {
		return errors.New("catalog: nil source")
	}
	data, err := src.Load()
	if err != nil {
		return fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
	}
	if len(doc.Segments) == 0 {
		return fmt.Errorf("catalog: %s contains no segments", src.Path())
	}

	for _, finding := range validate(doc) {
		c.logger.Printf("catalog: %s: %s", src.Path(), finding)
	}

	c.mu.Lock()
	c.source = src
	c.doc = doc
	c.mu.Unlock()
	return nil
}

// Validate re-runs document validation and reports whether it is clean.
func (c *Catalog) Validate() bool {
	c.mu.RLock()
	doc := c.doc
	c.mu.RUnlock()
	return len(validate(doc)) == 0
}

// validate collects per-field findings. Deliberately permissive: the catalog
// stays usable with partially-invalid data.
func validate(doc Document) []string {
	var findings []string
	if strings.TrimSpace(doc.Version) == "" {
		findings = append(findings, "missing version tag")
	}
	if doc.Count != 0 && doc.Count != len(doc.Segments) {
		findings = append(findings, fmt.Sprintf("count hint %d does not match %d segments", doc.Count, len(doc.Segments)))
	}
	for i, seg := range doc.Segments {
		label := seg.ID
		if label == "" {
			label = fmt.Sprintf("segments[%d]", i)
			findings = append(findings, fmt.Sprintf("%s: missing id", label))
		}
		if seg.Length <= 0 {
			findings = append(findings, fmt.Sprintf("%s: non-positive length %v", label, seg.Length))
		}
		if seg.Difficulty < 1 {
			findings = append(findings, fmt.Sprintf("%s: difficulty %d below 1", label, seg.Difficulty))
		}
		for j, p := range seg.Obstacles {
			if strings.TrimSpace(p.Category) == "" {
				findings = append(findings, fmt.Sprintf("%s: obstacles[%d] missing category", label, j))
			}
			if p.Lane < LaneMin || p.Lane > LaneMax {
				findings = append(findings, fmt.Sprintf("%s: obstacles[%d] lane %d out of range", label, j, p.Lane))
			}
			if p.Offset < 0 || p.Offset > seg.Length {
				findings = append(findings, fmt.Sprintf("%s: obstacles[%d] offset %v outside segment", label, j, p.Offset))
			}
		}
		for j, g := range seg.CoinGroups {
			if g.Count <= 0 {
				findings = append(findings, fmt.Sprintf("%s: coinGroups[%d] non-positive count %d", label, j, g.Count))
			}
			if g.Lane < LaneMin || g.Lane > LaneMax {
				findings = append(findings, fmt.Sprintf("%s: coinGroups[%d] lane %d out of range", label, j, g.Lane))
			}
		}
		for j, s := range seg.SupportItems {
			if s.Lane < LaneMin || s.Lane > LaneMax {
				findings = append(findings, fmt.Sprintf("%s: supportItems[%d] lane %d out of range", label, j, s.Lane))
			}
		}
	}
	return findings
}

// Segment selects uniformly at random among definitions with difficulty at
// most maxDifficulty. When none qualify it falls back to a uniform pick over
// the entire catalog, so it only reports failure for an empty catalog.
func (c *Catalog) Segment(maxDifficulty int) (SegmentDefinition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.doc.Segments) == 0 {
		return SegmentDefinition{}, false
	}

	eligible := make([]int, 0, len(c.doc.Segments))
	for i, seg := range c.doc.Segments {
		if seg.Difficulty <= maxDifficulty {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return c.doc.Segments[c.rng.Intn(len(c.doc.Segments))], true
	}
	return c.doc.Segments[eligible[c.rng.Intn(len(eligible))]], true
}

// Definitions returns a copy of the loaded definition list, for callers that
// need to scan the whole catalog (pool sizing, tooling).
func (c *Catalog) Definitions() []SegmentDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]SegmentDefinition, len(c.doc.Segments))
	copy(defs, c.doc.Segments)
	return defs
}

// Len reports the number of loaded definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.doc.Segments)
}

// Version reports the loaded document's version tag.
func (c *Catalog) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc.Version
}

// Path reports where the current document was loaded from.
func (c *Catalog) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.source == nil {
		return ""
	}
	return c.source.Path()
}
