package engine

import (
	"log"
	"sync"
	"time"

	"github.com/trailhead-app/trailhead/internal/infra/observability"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
)

// ─── Optimistic Update Coordinator ──────────────────────────────────────────
// A short-lived cached total gives the UI an instant number while the
// authoritative append is in flight. The speculative path never mutates
// durable state and is deliberately OUTSIDE the engine's serialization
// point: it only ever publishes numbers, and every number it publishes is
// eventually corrected against the store.

// TotalListener receives published totals. speculative marks numbers that
// have not been confirmed by a committed write.
type TotalListener func(total int64, speculative bool)

// Coordinator maintains the optimistic total cache and the debounced
// background reconciliation.
type Coordinator struct {
	mu        sync.Mutex
	clock     schedule.Clock
	ttl       time.Duration
	debounce  time.Duration
	tolerance int64
	readTotal func() (int64, error)
	listener  TotalListener

	cached      int64
	cachedAt    time.Time
	speculating bool
	timer       schedule.Timer

	corrections int64
}

// NewCoordinator wires a coordinator to the authoritative total reader.
// listener may be nil.
func NewCoordinator(clock schedule.Clock, cfg Config, readTotal func() (int64, error), listener TotalListener) *Coordinator {
	return &Coordinator{
		clock:     clock,
		ttl:       cfg.OptimisticTTL,
		debounce:  cfg.ReconcileDebounce,
		tolerance: cfg.ReconcileTolerance,
		readTotal: readTotal,
		listener:  listener,
	}
}

// Speculate publishes an immediate speculative total: cached (or freshly
// read) total plus the requested delta. Returns the speculative value.
func (c *Coordinator) Speculate(delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.freshTotalLocked()
	spec := base + delta
	if spec < 0 {
		spec = 0
	}
	c.cached = spec
	c.cachedAt = c.clock.Now()
	c.speculating = true
	c.publishLocked(spec, true)
	return spec
}

// Confirm reconciles the cache against the authoritative post-commit
// total, publishing a correction if the speculation was wrong.
func (c *Coordinator) Confirm(authoritative int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mismatch := c.speculating && c.cached != authoritative
	c.cached = authoritative
	c.cachedAt = c.clock.Now()
	c.speculating = false
	if mismatch {
		c.corrections++
		observability.OptimisticCorrections.Inc()
		c.publishLocked(authoritative, false)
	}
}

// Revert withdraws a speculative publication after a failed append by
// re-reading and republishing the authoritative total.
func (c *Coordinator) Revert() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.speculating {
		return
	}
	c.speculating = false
	total, err := c.readTotal()
	if err != nil {
		log.Printf("[optimistic] revert could not re-read total: %v", err)
		return
	}
	c.cached = total
	c.cachedAt = c.clock.Now()
	c.publishLocked(total, false)
}

// CachedTotal returns the current cached total, refreshing it from the
// store when the TTL has lapsed.
func (c *Coordinator) CachedTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshTotalLocked()
}

// ScheduleReconcile (re)arms the debounced background reconciliation.
// Bursts of mutations collapse into one reconcile run.
func (c *Coordinator) ScheduleReconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.debounce, c.Reconcile)
}

// Reconcile re-reads the authoritative total and corrects cache drift
// beyond the tolerance. Idempotent: a second run with no intervening
// writes is a no-op.
func (c *Coordinator) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	total, err := c.readTotal()
	if err != nil {
		log.Printf("[optimistic] reconcile could not read total: %v", err)
		return
	}

	drift := total - c.cached
	if drift < 0 {
		drift = -drift
	}
	if drift > c.tolerance {
		c.corrections++
		observability.OptimisticCorrections.Inc()
		c.cached = total
		c.cachedAt = c.clock.Now()
		c.publishLocked(total, false)
	}
}

// Corrections reports how many corrections have been published.
func (c *Coordinator) Corrections() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.corrections
}

func (c *Coordinator) freshTotalLocked() int64 {
	if !c.cachedAt.IsZero() && c.clock.Now().Sub(c.cachedAt) <= c.ttl {
		return c.cached
	}
	total, err := c.readTotal()
	if err != nil {
		log.Printf("[optimistic] could not refresh total, serving stale cache: %v", err)
		return c.cached
	}
	c.cached = total
	c.cachedAt = c.clock.Now()
	return total
}

func (c *Coordinator) publishLocked(total int64, speculative bool) {
	if c.listener != nil {
		c.listener(total, speculative)
	}
}
