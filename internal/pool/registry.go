package pool

import (
	"fmt"
	"sort"
	"sync"

	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/internal/variant"
)

// Instance is one pooled content object. The variant key is tagged at
// construction time and never changes; release routing is a map lookup on it.
type Instance struct {
	ID   string
	Key  string
	Type variant.ObstacleType
	Lane int
	// X is the absolute forward position, Y the vertical offset.
	X, Y   float64
	Active bool

	// KeepAlive lets a placed instance ask its owner whether teardown is
	// currently suspended, without holding a concrete scheduler reference.
	KeepAlive func() bool

	pooled bool
}

// entry is one variant's queue of idle instances plus construction stats.
// initialized distinguishes explicitly sized pools from ones auto-created by
// an on-demand acquire or release.
type entry struct {
	queue       []*Instance
	created     uint64
	inUse       int
	initialized bool
}

// PoolStats is a diagnostics snapshot for a single variant pool.
type PoolStats struct {
	Key       string `json:"key"`
	Available int    `json:"available"`
	InUse     int    `json:"inUse"`
	Created   uint64 `json:"created"`
}

// Registry owns every pooled instance, keyed by variant identity. All
// mutation happens from the scheduler's synchronous spawn/recycle steps; the
// mutex only guards the diagnostics endpoint's snapshot reads.
type Registry struct {
	mu      sync.Mutex
	pools   map[string]*entry
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

func NewRegistry(logger telemetry.Logger, metrics telemetry.Metrics) *Registry {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Registry{
		pools:   make(map[string]*entry),
		logger:  logger,
		metrics: metrics,
	}
}

// Initialize pre-creates size deactivated instances for the variant key.
// A second call for the same key is a warned no-op so a pool is never built
// twice. A pool that exists only because an earlier acquire or release
// auto-created it is not considered initialized: the planned sizing is still
// applied on top of whatever on-demand construction already happened.
func (r *Registry) Initialize(key string, size int) {
	if key == "" || size < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.pools[key]
	if exists && e.initialized {
		r.logger.Printf("pool: duplicate initialization for %q ignored", key)
		return
	}
	if !exists {
		e = &entry{queue: make([]*Instance, 0, size)}
		r.pools[key] = e
	} else if size > 0 {
		r.logger.Printf("pool: %q was created on demand before initialization, pre-creating %d now", key, size)
	}
	for i := 0; i < size; i++ {
		e.queue = append(e.queue, r.constructLocked(key, e))
	}
	e.initialized = true
	r.metrics.Store("pool.available."+key, uint64(len(e.queue)))
}

// constructLocked builds a fresh deactivated instance tagged with its key.
func (r *Registry) constructLocked(key string, e *entry) *Instance {
	e.created++
	r.metrics.Add("pool.constructed", 1)
	return &Instance{
		ID:     fmt.Sprintf("%s-%d", key, e.created),
		Key:    key,
		pooled: true,
	}
}

// Acquire dequeues an available instance, constructing a fresh one when the
// pool is exhausted or missing. On-demand growth is a sizing warning, not an
// error. The returned instance is activated and owned by the caller.
func (r *Registry) Acquire(key string) *Instance {
	if key == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pools[key]
	if !ok {
		r.logger.Printf("pool: no pool for %q, creating on demand", key)
		e = &entry{}
		r.pools[key] = e
	}

	var inst *Instance
	if len(e.queue) > 0 {
		inst = e.queue[0]
		e.queue = e.queue[1:]
	} else {
		inst = r.constructLocked(key, e)
		r.logger.Printf("pool: %q exhausted, constructed %s on demand (total %d)", key, inst.ID, e.created)
		r.metrics.Add("pool.exhausted", 1)
	}

	inst.pooled = false
	inst.Active = true
	e.inUse++
	r.metrics.Add("pool.acquired", 1)
	r.metrics.Store("pool.available."+key, uint64(len(e.queue)))
	return inst
}

// Release deactivates the instance and requeues it under the pool matching
// its own variant key, creating the pool on demand. Safe against nil handles
// and double release.
func (r *Registry) Release(inst *Instance) {
	if inst == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst.pooled {
		return
	}
	if inst.Key == "" {
		// No routing tag: drop from tracking rather than corrupt a pool.
		r.logger.Printf("pool: released instance %q has no variant key, dropping", inst.ID)
		return
	}

	e, ok := r.pools[inst.Key]
	if !ok {
		e = &entry{}
		r.pools[inst.Key] = e
	}

	inst.Active = false
	inst.KeepAlive = nil
	inst.pooled = true
	e.queue = append(e.queue, inst)
	if e.inUse > 0 {
		e.inUse--
	}
	r.metrics.Add("pool.released", 1)
	r.metrics.Store("pool.available."+inst.Key, uint64(len(e.queue)))
}

// Clear drops a variant's idle queue. In-use instances keep their tag and
// will recreate the pool when released.
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pools[key]
	if !ok {
		return
	}
	for _, inst := range e.queue {
		inst.pooled = false
	}
	e.queue = nil
	r.metrics.Store("pool.available."+key, 0)
}

// Stats returns a sorted diagnostics snapshot of every pool.
func (r *Registry) Stats() []PoolStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]PoolStats, 0, len(r.pools))
	for key, e := range r.pools {
		stats = append(stats, PoolStats{
			Key:       key,
			Available: len(e.queue),
			InUse:     e.inUse,
			Created:   e.created,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats
}
