package variant

import "math/rand"

// Track lanes. The agent switches between three lanes; index 1 is center.
const (
	LaneLeft   = 0
	LaneCenter = 1
	LaneRight  = 2
)

// centerRestricted lists the obstacle types too wide or too disruptive for
// the center lane: vehicles, street vendors, and generic barriers.
var centerRestricted = map[ObstacleType]bool{
	ObstacleCar:         true,
	ObstacleTruck:       true,
	ObstacleBus:         true,
	ObstacleVendorStall: true,
	ObstacleBarrier:     true,
}

// LaneValidator decides placement legality per obstacle type and remaps
// illegal center-lane requests to an outer lane.
type LaneValidator struct {
	rng *rand.Rand
}

func NewLaneValidator(rng *rand.Rand) *LaneValidator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &LaneValidator{rng: rng}
}

// Allowed reports whether the obstacle type may occupy the requested lane.
func (v *LaneValidator) Allowed(typ ObstacleType, lane int) bool {
	if lane != LaneCenter {
		return true
	}
	return !centerRestricted[typ]
}

// Remap returns a legal lane for a rejected request. Outer lanes are already
// legal and come back unchanged; the center lane maps to a random outer lane.
func (v *LaneValidator) Remap(lane int) int {
	if lane != LaneCenter {
		return lane
	}
	if v.rng.Intn(2) == 0 {
		return LaneLeft
	}
	return LaneRight
}
