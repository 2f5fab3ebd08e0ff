package sim

// CommandType identifies a control command staged for the next tick.
type CommandType string

const (
	// CommandPauseRecycling suspends or resumes trailing-edge recycling.
	CommandPauseRecycling CommandType = "pause_recycling"
	// CommandReloadCatalog re-reads the segment catalog from disk.
	CommandReloadCatalog CommandType = "reload_catalog"
	// CommandClearNearGoal releases all content within a distance of the goal.
	CommandClearNearGoal CommandType = "clear_near_goal"
)

// Command is one control request. Commands are applied between ticks so the
// engine never observes a half-applied toggle.
type Command struct {
	Type     CommandType
	Paused   bool
	Path     string
	Distance float64
}
