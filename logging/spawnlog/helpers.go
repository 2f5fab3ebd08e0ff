package spawnlog

import (
	"context"

	"street-sprint/engine/logging"
)

const (
	// EventSegmentSpawned is emitted when a segment is appended to the window.
	EventSegmentSpawned logging.EventType = "spawn.segment_spawned"
	// EventSegmentRecycled is emitted when the trailing segment is recycled.
	EventSegmentRecycled logging.EventType = "spawn.segment_recycled"
	// EventSafeZoneEntered is emitted when a spawned segment suppresses hazards.
	EventSafeZoneEntered logging.EventType = "spawn.safe_zone_entered"
	// EventDifficultyRaised is emitted when the difficulty tier increases.
	EventDifficultyRaised logging.EventType = "spawn.difficulty_raised"
	// EventPlacementSkipped is emitted when a single placement cannot be resolved.
	EventPlacementSkipped logging.EventType = "spawn.placement_skipped"
	// EventContentCleared is emitted by the near-goal safety net.
	EventContentCleared logging.EventType = "spawn.content_cleared"
)

// SegmentSpawnedPayload captures where a segment landed and what it holds.
type SegmentSpawnedPayload struct {
	Name       string  `json:"name"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Difficulty int     `json:"difficulty"`
	Safe       bool    `json:"safe"`
	Instances  int     `json:"instances"`
}

// SegmentRecycledPayload captures the recycled segment's bounds.
type SegmentRecycledPayload struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Instances int     `json:"instances"`
}

// SafeZoneEnteredPayload records why hazard spawning was suppressed.
type SafeZoneEnteredPayload struct {
	Reason   string  `json:"reason"`
	Position float64 `json:"position"`
}

// DifficultyRaisedPayload records a tier transition.
type DifficultyRaisedPayload struct {
	Tier     int `json:"tier"`
	Segments int `json:"segments"`
}

// PlacementSkippedPayload records a placement that degraded to a no-op.
type PlacementSkippedPayload struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// ContentClearedPayload records the near-goal clearing sweep.
type ContentClearedPayload struct {
	Distance float64 `json:"distance"`
	Released int     `json:"released"`
}

// SegmentSpawned publishes a segment spawn event.
func SegmentSpawned(ctx context.Context, pub logging.Publisher, tick uint64, segment logging.EntityRef, payload SegmentSpawnedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSegmentSpawned,
		Tick:     tick,
		Actor:    segment,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

// SegmentRecycled publishes a segment recycle event.
func SegmentRecycled(ctx context.Context, pub logging.Publisher, tick uint64, segment logging.EntityRef, payload SegmentRecycledPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSegmentRecycled,
		Tick:     tick,
		Actor:    segment,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

// SafeZoneEntered publishes a hazard-suppression event.
func SafeZoneEntered(ctx context.Context, pub logging.Publisher, tick uint64, segment logging.EntityRef, payload SafeZoneEnteredPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSafeZoneEntered,
		Tick:     tick,
		Actor:    segment,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

// DifficultyRaised publishes a tier increase.
func DifficultyRaised(ctx context.Context, pub logging.Publisher, tick uint64, payload DifficultyRaisedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventDifficultyRaised,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindEngine},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

// PlacementSkipped publishes a degraded placement.
func PlacementSkipped(ctx context.Context, pub logging.Publisher, tick uint64, segment logging.EntityRef, payload PlacementSkippedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlacementSkipped,
		Tick:     tick,
		Actor:    segment,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

// ContentCleared publishes the result of a near-goal clearing sweep.
func ContentCleared(ctx context.Context, pub logging.Publisher, tick uint64, payload ContentClearedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventContentCleared,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindEngine},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySpawn,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}
