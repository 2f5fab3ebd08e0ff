package variant

import (
	"strings"
	"sync"
	"time"

	"street-sprint/engine/internal/telemetry"
)

// ObstacleType is the semantic class an obstacle instance resolves to.
type ObstacleType string

const (
	ObstacleGeneric      ObstacleType = "generic"
	ObstacleCar          ObstacleType = "car"
	ObstacleTruck        ObstacleType = "truck"
	ObstacleBus          ObstacleType = "bus"
	ObstacleShoppingCart ObstacleType = "shopping_cart"
	ObstaclePushCart     ObstacleType = "push_cart"
	ObstacleVendorStall  ObstacleType = "vendor_stall"
	ObstacleFence        ObstacleType = "fence"
	ObstacleBarrier      ObstacleType = "barrier"
	ObstacleCone         ObstacleType = "cone"
	ObstacleHydrant      ObstacleType = "hydrant"
	ObstacleDumpster     ObstacleType = "dumpster"
)

// BehaviorClass is the gameplay effect on collision.
type BehaviorClass string

const (
	BehaviorHazardous     BehaviorClass = "hazardous"
	BehaviorSpeedReducing BehaviorClass = "speed_reducing"
)

// Record carries the per-type tuning collision handlers look up. Multiplier
// and slow duration are meaningful only for BehaviorSpeedReducing.
type Record struct {
	Type            ObstacleType
	Behavior        BehaviorClass
	Name            string
	SpeedMultiplier float64
	SlowDuration    time.Duration
}

// rule maps a normalized-identity substring to a type. Rules are matched in
// order and the first hit wins, so more specific substrings must precede the
// generic ones they contain: "shopping cart" before "cart" before "car".
type rule struct {
	substr string
	typ    ObstacleType
}

var classificationRules = []rule{
	{"shopping cart", ObstacleShoppingCart},
	{"hand cart", ObstaclePushCart},
	{"cart", ObstaclePushCart},
	{"carriage", ObstaclePushCart},
	{"truck", ObstacleTruck},
	{"bus", ObstacleBus},
	{"car", ObstacleCar},
	{"vendor", ObstacleVendorStall},
	{"stall", ObstacleVendorStall},
	{"stand", ObstacleVendorStall},
	{"fence", ObstacleFence},
	{"barricade", ObstacleBarrier},
	{"barrier", ObstacleBarrier},
	{"cone", ObstacleCone},
	{"hydrant", ObstacleHydrant},
	{"dumpster", ObstacleDumpster},
}

// strippedSuffixes are instancing markers appended by spawning and pooling.
var strippedSuffixes = []string{"(clone)", "(pooled)", "(instance)"}

// Table resolves content-instance identities to obstacle types and exposes
// per-type behavior records. Lookups never fail: unknown identities resolve
// to ObstacleGeneric and unknown types return a hazardous default.
type Table struct {
	records map[ObstacleType]Record
	logger  telemetry.Logger

	mu         sync.Mutex
	gapsLogged map[ObstacleType]bool
}

// NewTable builds the default classification table.
func NewTable(logger telemetry.Logger) *Table {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Table{
		records:    buildRecords(),
		logger:     logger,
		gapsLogged: make(map[ObstacleType]bool),
	}
}

func buildRecords() map[ObstacleType]Record {
	defs := []Record{
		{Type: ObstacleCar, Behavior: BehaviorHazardous, Name: "Parked Car"},
		{Type: ObstacleTruck, Behavior: BehaviorHazardous, Name: "Delivery Truck"},
		{Type: ObstacleBus, Behavior: BehaviorHazardous, Name: "City Bus"},
		{Type: ObstacleShoppingCart, Behavior: BehaviorSpeedReducing, Name: "Shopping Cart", SpeedMultiplier: 0.6, SlowDuration: 2 * time.Second},
		{Type: ObstaclePushCart, Behavior: BehaviorSpeedReducing, Name: "Push Cart", SpeedMultiplier: 0.7, SlowDuration: 2 * time.Second},
		{Type: ObstacleVendorStall, Behavior: BehaviorHazardous, Name: "Vendor Stall"},
		{Type: ObstacleFence, Behavior: BehaviorHazardous, Name: "Street Fence"},
		{Type: ObstacleBarrier, Behavior: BehaviorHazardous, Name: "Road Barrier"},
		{Type: ObstacleCone, Behavior: BehaviorSpeedReducing, Name: "Traffic Cone", SpeedMultiplier: 0.8, SlowDuration: time.Second},
		{Type: ObstacleHydrant, Behavior: BehaviorHazardous, Name: "Fire Hydrant"},
		{Type: ObstacleDumpster, Behavior: BehaviorHazardous, Name: "Dumpster"},
		{Type: ObstacleGeneric, Behavior: BehaviorHazardous, Name: "Obstacle"},
	}
	records := make(map[ObstacleType]Record, len(defs))
	for _, def := range defs {
		records[def.Type] = def
	}
	return records
}

// Normalize folds case, splits camelCase, strips instancing suffixes,
// converts separators to spaces, and trims trailing numbering so both
// "Fence_02 (Clone)" and "ShoppingCart(Clone)" match their rules.
func Normalize(identity string) string {
	var b strings.Builder
	b.Grow(len(identity) + 4)
	var prevLower bool
	for _, r := range identity {
		if prevLower && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		prevLower = r >= 'a' && r <= 'z'
		b.WriteRune(r)
	}

	s := strings.ToLower(strings.TrimSpace(b.String()))
	for _, suffix := range strippedSuffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.TrimRight(s, "0123456789 ")
	return strings.Join(strings.Fields(s), " ")
}

// Resolve maps a content-instance identity to its obstacle type. First
// matching rule wins; no match falls through to ObstacleGeneric.
func (t *Table) Resolve(identity string) ObstacleType {
	normalized := Normalize(identity)
	if normalized == "" {
		return ObstacleGeneric
	}
	for _, r := range classificationRules {
		if strings.Contains(normalized, r.substr) {
			return r.typ
		}
	}
	return ObstacleGeneric
}

// Record returns the behavior record for a type. Unknown types get a
// deterministic hazardous default; the gap is logged once per type.
func (t *Table) Record(typ ObstacleType) Record {
	if rec, ok := t.records[typ]; ok {
		return rec
	}
	t.mu.Lock()
	if !t.gapsLogged[typ] {
		t.gapsLogged[typ] = true
		t.logger.Printf("variant: no record for obstacle type %q, using hazardous default", typ)
	}
	t.mu.Unlock()
	return Record{Type: typ, Behavior: BehaviorHazardous, Name: string(typ)}
}
