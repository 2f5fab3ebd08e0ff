package pool

import (
	"sort"
	"sync"
)

// Warmup amortizes pool construction across ticks: each Step builds exactly
// one variant's pool, so no single tick pays for the whole set. The owning
// loop advances it once per tick until Done reports true.
type Warmup struct {
	registry *Registry

	mu    sync.Mutex
	steps []warmupStep
	next  int
}

type warmupStep struct {
	key  string
	size int
}

// NewWarmup plans one construction step per variant, in deterministic key
// order.
func NewWarmup(registry *Registry, sizes map[string]int) *Warmup {
	keys := make([]string, 0, len(sizes))
	for key := range sizes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	steps := make([]warmupStep, 0, len(keys))
	for _, key := range keys {
		steps = append(steps, warmupStep{key: key, size: sizes[key]})
	}
	return &Warmup{registry: registry, steps: steps}
}

// Step builds the next pool and reports whether any work was performed.
func (w *Warmup) Step() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	if w.next >= len(w.steps) {
		w.mu.Unlock()
		return false
	}
	step := w.steps[w.next]
	w.next++
	w.mu.Unlock()

	w.registry.Initialize(step.key, step.size)
	return true
}

// Done reports whether every planned pool has been built.
func (w *Warmup) Done() bool {
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next >= len(w.steps)
}

// Remaining reports how many pools are still unbuilt.
func (w *Warmup) Remaining() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.steps) - w.next
}
