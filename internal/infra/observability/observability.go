// Package observability defines the engine's Prometheus metrics. Metrics
// are package-level promauto vars registered on the default registry and
// exposed by the API server's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// XPGranted tracks XP credited to the ledger by source.
var XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "granted_total",
	Help:      "Total XP granted, by source.",
}, []string{"source"})

// XPRejected tracks grants refused by the guard, by reason.
var XPRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "rejected_total",
	Help:      "Total grants rejected by the validation guard, by reason.",
}, []string{"reason"})

// XPBatched tracks grants coalesced into a pending batch.
var XPBatched = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "batched_total",
	Help:      "Total grants enqueued into the batching aggregator.",
})

// XPTotal tracks the committed lifetime XP total.
var XPTotal = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "total",
	Help:      "Committed lifetime XP total.",
})

// CurrentLevel tracks the current level.
var CurrentLevel = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "level",
	Help:      "Current level derived from lifetime XP.",
})

// LevelUps tracks level-up occurrences.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "level_ups_total",
	Help:      "Total level-ups recorded.",
})

// StorageFailures tracks ledger mutations that failed at the store.
var StorageFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "storage_failures_total",
	Help:      "Total ledger mutations that failed with a storage error.",
})

// OptimisticCorrections tracks corrections published by the optimistic
// total coordinator.
var OptimisticCorrections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "xp",
	Name:      "optimistic_corrections_total",
	Help:      "Total corrections published after a wrong speculative total.",
})

// ─── Multiplier Metrics ─────────────────────────────────────────────────────

// MultiplierActivations tracks multiplier windows opened, by source.
var MultiplierActivations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "multiplier",
	Name:      "activations_total",
	Help:      "Total multiplier activations, by source.",
}, []string{"source"})

// MultiplierActive tracks whether a multiplier window is currently open.
var MultiplierActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "trailhead",
	Subsystem: "multiplier",
	Name:      "active",
	Help:      "Whether an XP multiplier is currently active (1) or not (0).",
})

// ─── Monthly Reward Metrics ─────────────────────────────────────────────────

// MonthlyRewards tracks monthly challenge rewards awarded, by tier.
var MonthlyRewards = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "monthly",
	Name:      "rewards_total",
	Help:      "Total monthly challenge rewards awarded, by tier.",
}, []string{"tier"})

// MonthlyRewardXP tracks XP paid out by monthly rewards.
var MonthlyRewardXP = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "trailhead",
	Subsystem: "monthly",
	Name:      "reward_xp_total",
	Help:      "Total XP paid out by monthly challenge rewards.",
})

// ─── Feed Metrics ───────────────────────────────────────────────────────────

// FeedSubscribers tracks live event feed subscribers.
var FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "trailhead",
	Subsystem: "feed",
	Name:      "subscribers",
	Help:      "Number of connected live event feed subscribers.",
})
