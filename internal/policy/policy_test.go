package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoalBandScenario(t *testing.T) {
	p := New(Config{GoalDistance: 1000, SafeZoneBand: 100, SegmentsPerTier: 8, MaxTier: 5})

	assert.False(t, p.Safe(850, 10, false), "150 before goal is outside the band")
	assert.True(t, p.Safe(950, 10, false), "50 before goal is inside the band")
	assert.False(t, p.Safe(1000, 10, false), "at the goal the band rule requires strictly positive distance")
	assert.False(t, p.Safe(1100, 10, false), "beyond the goal is never safe")
}

func TestGoalBandIsContiguous(t *testing.T) {
	p := New(Config{GoalDistance: 1000, SafeZoneBand: 100, SegmentsPerTier: 8, MaxTier: 5})

	// Once the band begins, every closer position up to (not including) the
	// goal stays safe.
	entered := false
	for pos := 800.0; pos < 1000; pos += 5 {
		safe := p.Safe(pos, 10, false)
		if safe {
			entered = true
		}
		if entered && !safe {
			t.Fatalf("band became unsafe at %v before the goal", pos)
		}
	}
	assert.True(t, entered, "band never entered")
}

func TestOpenEndedModeHasNoBand(t *testing.T) {
	p := New(Config{GoalDistance: 0, SafeZoneBand: 100, SegmentsPerTier: 8, MaxTier: 5})
	for _, pos := range []float64{0, 500, 10000} {
		assert.False(t, p.Safe(pos, 10, false), "open-ended play never hits the band at %v", pos)
	}
	_, ok := p.Goal()
	assert.False(t, ok)
}

func TestExplicitFlagAlwaysSafe(t *testing.T) {
	p := New(Config{SegmentsPerTier: 8, MaxTier: 5})
	reason, safe := p.SafeWithReason(123, 42, true)
	assert.True(t, safe)
	assert.Equal(t, ReasonExplicitFlag, reason)
}

func TestTutorialSuppression(t *testing.T) {
	on := New(Config{TutorialSuppression: true, SegmentsPerTier: 8, MaxTier: 5})
	reason, safe := on.SafeWithReason(0, 0, false)
	assert.True(t, safe, "first segment is safe with tutorial suppression on")
	assert.Equal(t, ReasonTutorial, reason)
	assert.False(t, on.Safe(0, 1, false), "second segment is not tutorial")

	off := New(Config{TutorialSuppression: false, SegmentsPerTier: 8, MaxTier: 5})
	assert.False(t, off.Safe(0, 0, false), "toggle off disables tutorial suppression")
}

func TestDifficultyProgression(t *testing.T) {
	p := New(Config{SegmentsPerTier: 4, MaxTier: 3})

	assert.Equal(t, 1, p.Difficulty(0))
	assert.Equal(t, 1, p.Difficulty(3))
	assert.Equal(t, 2, p.Difficulty(4))
	assert.Equal(t, 2, p.Difficulty(7))
	assert.Equal(t, 3, p.Difficulty(8))
	assert.Equal(t, 3, p.Difficulty(1000), "tier is capped at the maximum")

	// Monotonic over any increasing spawn count.
	prev := 0
	for n := 0; n < 50; n++ {
		tier := p.Difficulty(n)
		assert.GreaterOrEqual(t, tier, prev)
		prev = tier
	}
}

func TestCollectibleToggles(t *testing.T) {
	p := New(Config{ClearCoinsInSafeZone: true, ClearSupportInSafeZone: false, SegmentsPerTier: 8, MaxTier: 5})
	assert.True(t, p.ClearCoins())
	assert.False(t, p.ClearSupport())
}
