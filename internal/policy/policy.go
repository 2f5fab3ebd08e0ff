package policy

// Config tunes safe-zone suppression and difficulty progression for one run.
// GoalDistance <= 0 means open-ended play with no pre-goal band.
type Config struct {
	TutorialSuppression bool
	GoalDistance        float64
	SafeZoneBand        float64
	SegmentsPerTier     int
	MaxTier             int

	// Independent toggles for clearing collectibles inside safe zones.
	// Hazards are always suppressed regardless.
	ClearCoinsInSafeZone   bool
	ClearSupportInSafeZone bool
}

func DefaultConfig() Config {
	return Config{
		TutorialSuppression: true,
		SafeZoneBand:        100,
		SegmentsPerTier:     8,
		MaxTier:             5,
	}
}

// Policy answers hazard-suppression and difficulty queries. The goal
// position is read once at construction and fixed for the run.
type Policy struct {
	cfg Config
}

func New(cfg Config) *Policy {
	if cfg.SegmentsPerTier <= 0 {
		cfg.SegmentsPerTier = 1
	}
	if cfg.MaxTier < 1 {
		cfg.MaxTier = 1
	}
	return &Policy{cfg: cfg}
}

// SafeReason explains why a position was ruled safe.
type SafeReason string

const (
	ReasonNone         SafeReason = ""
	ReasonExplicitFlag SafeReason = "explicit_flag"
	ReasonTutorial     SafeReason = "tutorial"
	ReasonGoalBand     SafeReason = "goal_band"
)

// Safe reports whether hazard spawning must be suppressed for a segment
// starting at position, given how many segments spawned before it and the
// definition's explicit flag.
func (p *Policy) Safe(position float64, segmentsSpawned int, explicitFlag bool) bool {
	_, safe := p.SafeWithReason(position, segmentsSpawned, explicitFlag)
	return safe
}

// SafeWithReason is Safe plus the first matching rule, for event payloads.
func (p *Policy) SafeWithReason(position float64, segmentsSpawned int, explicitFlag bool) (SafeReason, bool) {
	if explicitFlag {
		return ReasonExplicitFlag, true
	}
	if p.cfg.TutorialSuppression && segmentsSpawned == 0 {
		return ReasonTutorial, true
	}
	// The band requires strictly positive distance to goal: at or beyond the
	// goal the run is over and the rule no longer applies.
	if p.cfg.GoalDistance > 0 {
		remaining := p.cfg.GoalDistance - position
		if remaining > 0 && remaining <= p.cfg.SafeZoneBand {
			return ReasonGoalBand, true
		}
	}
	return ReasonNone, false
}

// Difficulty returns the current tier: one tier gained per SegmentsPerTier
// segments spawned, starting at 1 and capped at MaxTier. Monotonic because
// segmentsSpawned never decreases during a run.
func (p *Policy) Difficulty(segmentsSpawned int) int {
	if segmentsSpawned < 0 {
		segmentsSpawned = 0
	}
	tier := 1 + segmentsSpawned/p.cfg.SegmentsPerTier
	if tier > p.cfg.MaxTier {
		tier = p.cfg.MaxTier
	}
	return tier
}

// Goal reports the run's goal distance; ok is false in open-ended mode.
func (p *Policy) Goal() (float64, bool) {
	if p.cfg.GoalDistance <= 0 {
		return 0, false
	}
	return p.cfg.GoalDistance, true
}

// ClearCoins reports whether coin lines are suppressed inside safe zones.
func (p *Policy) ClearCoins() bool {
	return p.cfg.ClearCoinsInSafeZone
}

// ClearSupport reports whether support items are suppressed inside safe zones.
func (p *Policy) ClearSupport() bool {
	return p.cfg.ClearSupportInSafeZone
}
