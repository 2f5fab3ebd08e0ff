package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"street-sprint/engine/internal/catalog"
	"street-sprint/engine/internal/policy"
	"street-sprint/engine/internal/pool"
	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/internal/variant"
	"street-sprint/engine/logging"
	"street-sprint/engine/logging/spawnlog"
)

// Config tunes the sliding window of active segments.
type Config struct {
	// LookAhead is how close the agent may get to the leading edge before
	// the next segment is spawned.
	LookAhead float64
	// TrailingMargin is how far the agent must pass a segment's end before
	// it is recycled.
	TrailingMargin float64
	// MaxWindow bounds the steady-state number of active segments. While
	// recycling is suspended the window may grow past it.
	MaxWindow int
	// CoinKey is the pool key coin lines acquire from.
	CoinKey string
	// SupportItems is the weighted set a support placement draws from.
	// Weights are normalized at spawn time.
	SupportItems []SupportItem
}

// SupportItem is one weighted choice for a support placement.
type SupportItem struct {
	Key    string
	Weight float64
}

func DefaultConfig() Config {
	return Config{
		LookAhead:      150,
		TrailingMargin: 30,
		MaxWindow:      3,
		CoinKey:        "coin",
		SupportItems: []SupportItem{
			{Key: "magnet", Weight: 0.4},
			{Key: "shield", Weight: 0.35},
			{Key: "boost", Weight: 0.25},
		},
	}
}

// ActiveSegment is one instantiated slice of track inside the window.
type ActiveSegment struct {
	Definition catalog.SegmentDefinition
	Start, End float64
	Safe       bool
	Instances  []*pool.Instance
}

// Deps are the collaborating services the scheduler drives. All of them are
// constructed explicitly at startup and passed in; the scheduler holds no
// ambient globals.
type Deps struct {
	Catalog   *catalog.Catalog
	Variants  *variant.Table
	Lanes     *variant.LaneValidator
	Pools     *pool.Registry
	Policy    *policy.Policy
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Rand      *rand.Rand
}

// Scheduler maintains the sliding window of active segments ahead of the
// agent: spawning at the leading edge, recycling at the trailing edge, and
// keeping the forward cursor monotonic. Update runs once per tick from a
// single goroutine; the mutex guards diagnostics reads from elsewhere.
type Scheduler struct {
	cfg       Config
	catalog   *catalog.Catalog
	variants  *variant.Table
	lanes     *variant.LaneValidator
	pools     *pool.Registry
	policy    *policy.Policy
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	rng       *rand.Rand

	mu      sync.Mutex
	cursor  float64
	spawned int
	tier    int
	active  []*ActiveSegment
	tick    uint64

	recyclingPaused atomic.Bool
}

func New(deps Deps, cfg Config) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = 3
	}
	if cfg.CoinKey == "" {
		cfg.CoinKey = "coin"
	}
	return &Scheduler{
		cfg:       cfg,
		catalog:   deps.Catalog,
		variants:  deps.Variants,
		lanes:     deps.Lanes,
		pools:     deps.Pools,
		policy:    deps.Policy,
		logger:    logger,
		metrics:   metrics,
		publisher: publisher,
		rng:       rng,
		tier:      1,
	}
}

// Update advances the window for one tick given the agent's forward
// position. Spawning and recycling each happen at most once per tick.
func (s *Scheduler) Update(agentPos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++

	if s.shouldSpawnLocked(agentPos) {
		s.spawnNextLocked()
	}
	s.recycleTrailingLocked(agentPos)

	s.metrics.Store("scheduler.window", uint64(len(s.active)))
}

func (s *Scheduler) shouldSpawnLocked(agentPos float64) bool {
	if len(s.active) == 0 {
		return true
	}
	if len(s.active) >= s.cfg.MaxWindow && !s.recyclingPaused.Load() {
		return false
	}
	return s.cursor-agentPos < s.cfg.LookAhead
}

// spawnNextLocked pulls the next definition, applies the safe-zone policy,
// places all content, and appends the segment at the cursor. An empty
// catalog skips the tick; it is retried on the next one.
func (s *Scheduler) spawnNextLocked() {
	def, ok := s.catalog.Segment(s.policy.Difficulty(s.spawned))
	if !ok {
		s.logger.Printf("scheduler: catalog empty, skipping spawn this tick")
		return
	}

	start := s.cursor
	seg := &ActiveSegment{
		Definition: def,
		Start:      start,
		End:        start + def.Length,
	}
	reason, safe := s.policy.SafeWithReason(start, s.spawned, def.SafeZone)
	seg.Safe = safe

	ref := logging.EntityRef{ID: def.ID, Kind: logging.EntityKindSegment}
	ctx := context.Background()

	if !safe {
		for _, placement := range def.Obstacles {
			s.placeObstacleLocked(ctx, seg, ref, placement)
		}
	}
	if !safe || !s.policy.ClearCoins() {
		for _, group := range def.CoinGroups {
			s.placeCoinLineLocked(seg, group)
		}
	}
	if !safe || !s.policy.ClearSupport() {
		for _, item := range def.SupportItems {
			s.placeSupportItemLocked(seg, item)
		}
	}

	s.cursor = seg.End
	s.spawned++
	s.active = append(s.active, seg)

	s.metrics.Add("scheduler.segments_spawned", 1)
	spawnlog.SegmentSpawned(ctx, s.publisher, s.tick, ref, spawnlog.SegmentSpawnedPayload{
		Name:       def.Name,
		Start:      seg.Start,
		End:        seg.End,
		Difficulty: def.Difficulty,
		Safe:       safe,
		Instances:  len(seg.Instances),
	})
	if safe {
		spawnlog.SafeZoneEntered(ctx, s.publisher, s.tick, ref, spawnlog.SafeZoneEnteredPayload{
			Reason:   string(reason),
			Position: seg.Start,
		})
	}
	if tier := s.policy.Difficulty(s.spawned); tier > s.tier {
		s.tier = tier
		s.metrics.Store("scheduler.difficulty", uint64(tier))
		spawnlog.DifficultyRaised(ctx, s.publisher, s.tick, spawnlog.DifficultyRaisedPayload{
			Tier:     tier,
			Segments: s.spawned,
		})
	}
}

func (s *Scheduler) placeObstacleLocked(ctx context.Context, seg *ActiveSegment, ref logging.EntityRef, placement catalog.ObstaclePlacement) {
	if placement.Category == "" {
		spawnlog.PlacementSkipped(ctx, s.publisher, s.tick, ref, spawnlog.PlacementSkippedPayload{
			Reason: "missing category",
		})
		return
	}

	typ := s.variants.Resolve(placement.Category)
	lane := placement.Lane
	if !s.lanes.Allowed(typ, lane) {
		lane = s.lanes.Remap(lane)
	}

	inst := s.pools.Acquire(placement.Category)
	if inst == nil {
		spawnlog.PlacementSkipped(ctx, s.publisher, s.tick, ref, spawnlog.PlacementSkippedPayload{
			Category: placement.Category,
			Reason:   "unresolvable variant",
		})
		return
	}
	inst.Type = typ
	inst.Lane = lane
	inst.X = seg.Start + placement.Offset
	inst.Y = placement.Height
	inst.KeepAlive = s.RecyclingPaused
	seg.Instances = append(seg.Instances, inst)
}

// placeCoinLineLocked expands a coin group into a line of coin instances.
func (s *Scheduler) placeCoinLineLocked(seg *ActiveSegment, group catalog.CoinGroupPlacement) {
	for i := 0; i < group.Count; i++ {
		inst := s.pools.Acquire(s.cfg.CoinKey)
		if inst == nil {
			return
		}
		inst.Lane = group.Lane
		inst.X = seg.Start + group.Offset + float64(i)*group.Spacing
		inst.Y = 0
		seg.Instances = append(seg.Instances, inst)
	}
}

func (s *Scheduler) placeSupportItemLocked(seg *ActiveSegment, placement catalog.SupportItemPlacement) {
	key := s.pickSupportKeyLocked()
	if key == "" {
		return
	}
	inst := s.pools.Acquire(key)
	if inst == nil {
		return
	}
	inst.Lane = placement.Lane
	inst.X = seg.Start + placement.Offset
	inst.Y = 0
	seg.Instances = append(seg.Instances, inst)
}

// pickSupportKeyLocked draws from the weighted support set, normalizing the
// weights so authoring does not need them to sum to 1.
func (s *Scheduler) pickSupportKeyLocked() string {
	if len(s.cfg.SupportItems) == 0 {
		return ""
	}
	var total float64
	for _, item := range s.cfg.SupportItems {
		if item.Weight > 0 {
			total += item.Weight
		}
	}
	if total <= 0 {
		return s.cfg.SupportItems[s.rng.Intn(len(s.cfg.SupportItems))].Key
	}
	roll := s.rng.Float64() * total
	for _, item := range s.cfg.SupportItems {
		if item.Weight <= 0 {
			continue
		}
		roll -= item.Weight
		if roll < 0 {
			return item.Key
		}
	}
	return s.cfg.SupportItems[len(s.cfg.SupportItems)-1].Key
}

// recycleTrailingLocked releases the trailing segment once the agent has
// passed it by the trailing margin, unless recycling is suspended.
func (s *Scheduler) recycleTrailingLocked(agentPos float64) {
	if len(s.active) == 0 || s.recyclingPaused.Load() {
		return
	}
	trailing := s.active[0]
	if agentPos-trailing.End <= s.cfg.TrailingMargin {
		return
	}

	released := s.releaseSegmentLocked(trailing)
	s.active = s.active[1:]

	s.metrics.Add("scheduler.segments_recycled", 1)
	spawnlog.SegmentRecycled(context.Background(), s.publisher, s.tick,
		logging.EntityRef{ID: trailing.Definition.ID, Kind: logging.EntityKindSegment},
		spawnlog.SegmentRecycledPayload{
			Start:     trailing.Start,
			End:       trailing.End,
			Instances: released,
		})
}

func (s *Scheduler) releaseSegmentLocked(seg *ActiveSegment) int {
	released := 0
	for _, inst := range seg.Instances {
		s.pools.Release(inst)
		released++
	}
	seg.Instances = nil
	return released
}

// SetRecyclingPaused toggles the external "do not recycle" signal, used
// while a transition still references live content.
func (s *Scheduler) SetRecyclingPaused(paused bool) {
	s.recyclingPaused.Store(paused)
}

// RecyclingPaused reports whether recycling is currently suspended.
func (s *Scheduler) RecyclingPaused() bool {
	return s.recyclingPaused.Load()
}

// ClearNearGoal releases every instance within distance of the goal. It is a
// safety net for external proximity triggers; in open-ended mode it does
// nothing. Returns the number of released instances.
func (s *Scheduler) ClearNearGoal(distance float64) int {
	goal, ok := s.policy.Goal()
	if !ok || distance <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := goal - distance
	released := 0
	for _, seg := range s.active {
		kept := seg.Instances[:0]
		for _, inst := range seg.Instances {
			if inst.X >= threshold {
				s.pools.Release(inst)
				released++
				continue
			}
			kept = append(kept, inst)
		}
		seg.Instances = kept
	}

	if released > 0 {
		spawnlog.ContentCleared(context.Background(), s.publisher, s.tick, spawnlog.ContentClearedPayload{
			Distance: distance,
			Released: released,
		})
	}
	return released
}

// Shutdown releases every live instance and drops all segments. Pools own
// instance lifetime, so stopping mid-run needs no draining beyond this.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seg := range s.active {
		s.releaseSegmentLocked(seg)
	}
	s.active = nil
}

// SegmentSnapshot describes one active segment for diagnostics.
type SegmentSnapshot struct {
	ID        string  `json:"id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Safe      bool    `json:"safe"`
	Instances int     `json:"instances"`
}

// Snapshot describes the scheduler state for diagnostics.
type Snapshot struct {
	Tick            uint64            `json:"tick"`
	Cursor          float64           `json:"cursor"`
	Spawned         int               `json:"segmentsSpawned"`
	Difficulty      int               `json:"difficulty"`
	RecyclingPaused bool              `json:"recyclingPaused"`
	Window          []SegmentSnapshot `json:"window"`
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := make([]SegmentSnapshot, 0, len(s.active))
	for _, seg := range s.active {
		window = append(window, SegmentSnapshot{
			ID:        seg.Definition.ID,
			Start:     seg.Start,
			End:       seg.End,
			Safe:      seg.Safe,
			Instances: len(seg.Instances),
		})
	}
	return Snapshot{
		Tick:            s.tick,
		Cursor:          s.cursor,
		Spawned:         s.spawned,
		Difficulty:      s.policy.Difficulty(s.spawned),
		RecyclingPaused: s.recyclingPaused.Load(),
		Window:          window,
	}
}

// Cursor reports the forward spawn cursor.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
