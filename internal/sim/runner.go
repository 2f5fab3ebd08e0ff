package sim

import (
	"sync"
	"time"

	"street-sprint/engine/internal/catalog"
	"street-sprint/engine/internal/pool"
	"street-sprint/engine/internal/scheduler"
	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/logging"
)

// Config tunes the fixed-timestep runner and the agent's forward motion.
type Config struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int

	// BaseSpeed is the agent's forward speed at the start of a run, in
	// world units per second. Acceleration is applied every tick until
	// MaxSpeed is reached.
	BaseSpeed    float64
	Acceleration float64
	MaxSpeed     float64
}

func DefaultConfig() Config {
	return Config{
		TickRate:        30,
		CatchupMaxTicks: 4,
		CommandCapacity: 64,
		BaseSpeed:       12,
		Acceleration:    0.25,
		MaxSpeed:        30,
	}
}

// Deps are the services the runner drives each tick.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Catalog   *catalog.Catalog
	Warmup    *pool.Warmup
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
}

// Runner owns the fixed-timestep loop: it drains staged control commands,
// advances pool warm-up by one step, moves the agent forward, and hands the
// new position to the scheduler. All engine mutation happens on the loop
// goroutine; the command buffer is the only concurrent entry point.
type Runner struct {
	cfg       Config
	scheduler *scheduler.Scheduler
	catalog   *catalog.Catalog
	warmup    *pool.Warmup
	buffer    *CommandBuffer
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	clock     logging.Clock

	// mu guards the fields below for diagnostics reads; all writes happen
	// on the loop goroutine.
	mu       sync.Mutex
	position float64
	speed    float64
	tick     uint64
}

func NewRunner(deps Deps, cfg Config) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 64
	}
	return &Runner{
		cfg:       cfg,
		scheduler: deps.Scheduler,
		catalog:   deps.Catalog,
		warmup:    deps.Warmup,
		buffer:    NewCommandBuffer(cfg.CommandCapacity, metrics),
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		speed:     cfg.BaseSpeed,
	}
}

// Enqueue stages a control command for the next tick. It returns false when
// the buffer is saturated.
func (r *Runner) Enqueue(cmd Command) bool {
	if r == nil {
		return false
	}
	ok := r.buffer.Push(cmd)
	if !ok {
		r.logger.Printf("sim: command buffer full, dropping %s", cmd.Type)
	}
	return ok
}

// Step advances the engine by dt seconds. It is exported for tests; Run calls
// it from the loop goroutine.
func (r *Runner) Step(dt float64) {
	for _, cmd := range r.buffer.Drain() {
		r.applyCommand(cmd)
	}

	if r.warmup != nil && !r.warmup.Done() {
		r.warmup.Step()
	}

	r.mu.Lock()
	r.tick++
	r.speed += r.cfg.Acceleration * dt
	if r.cfg.MaxSpeed > 0 && r.speed > r.cfg.MaxSpeed {
		r.speed = r.cfg.MaxSpeed
	}
	r.position += r.speed * dt
	position := r.position
	r.mu.Unlock()

	r.scheduler.Update(position)
	r.metrics.Store("sim.agent_position", uint64(position))
}

func (r *Runner) applyCommand(cmd Command) {
	switch cmd.Type {
	case CommandPauseRecycling:
		r.scheduler.SetRecyclingPaused(cmd.Paused)
		r.logger.Printf("sim: recycling paused=%v", cmd.Paused)
	case CommandReloadCatalog:
		var err error
		if cmd.Path != "" {
			err = r.catalog.ReloadFrom(catalog.NewFileSource(cmd.Path))
		} else {
			err = r.catalog.Reload()
		}
		if err != nil {
			r.logger.Printf("sim: catalog reload failed, keeping previous: %v", err)
			return
		}
		r.logger.Printf("sim: catalog reloaded, %d segments", r.catalog.Len())
	case CommandClearNearGoal:
		released := r.scheduler.ClearNearGoal(cmd.Distance)
		r.logger.Printf("sim: near-goal clear released %d instances", released)
	default:
		r.logger.Printf("sim: unknown command %q", cmd.Type)
	}
}

// Run drives the fixed-timestep loop until the stop channel closes. Delta is
// clamped to CatchupMaxTicks worth of budget so a stalled host cannot launch
// the agent forward in one step.
func (r *Runner) Run(stop <-chan struct{}) {
	tickRate := r.cfg.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := r.clock.Now()
	budget := 1.0 / float64(tickRate)
	maxDt := budget
	if r.cfg.CatchupMaxTicks > 1 {
		maxDt = budget * float64(r.cfg.CatchupMaxTicks)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := r.clock.Now()
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = budget
			} else if dt > maxDt {
				dt = maxDt
			}
			last = now

			start := r.clock.Now()
			r.Step(dt)
			elapsed := r.clock.Now().Sub(start)
			if elapsed > time.Second/time.Duration(tickRate) {
				r.logger.Printf("sim: tick over budget: %s", elapsed)
			}
		}
	}
}

// Snapshot describes the runner state for diagnostics.
type Snapshot struct {
	Tick            uint64  `json:"tick"`
	Position        float64 `json:"position"`
	Speed           float64 `json:"speed"`
	PendingCommands int     `json:"pendingCommands"`
	WarmupRemaining int     `json:"warmupRemaining"`
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	snap := Snapshot{
		Tick:     r.tick,
		Position: r.position,
		Speed:    r.speed,
	}
	r.mu.Unlock()
	snap.PendingCommands = r.buffer.Len()
	if r.warmup != nil {
		snap.WarmupRemaining = r.warmup.Remaining()
	}
	return snap
}
