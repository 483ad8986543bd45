package engine

import (
	"sync"
	"time"
)

// ─── Post-Commit Event Dispatch ─────────────────────────────────────────────
// Subscribers (the achievement checker, the SSE feed, notification
// scheduling) consume events on their own goroutines AFTER the triggering
// mutation has committed. A subscriber that reacts by granting more XP
// re-enters the engine from outside the serialization point, so it can
// never deadlock it.

// EventType classifies an engine event.
type EventType string

const (
	EventGrantApplied        EventType = "grant_applied"
	EventLevelUp             EventType = "level_up"
	EventMultiplierActivated EventType = "multiplier_activated"
)

// Event is a single engine event. Fields are populated per type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // unix epoch

	// grant_applied
	Amount         int64  `json:"amount,omitempty"`
	Source         string `json:"source,omitempty"`
	ResultingTotal int64  `json:"resulting_total,omitempty"`

	// level_up
	PreviousLevel int    `json:"previous_level,omitempty"`
	NewLevel      int    `json:"new_level,omitempty"`
	Title         string `json:"title,omitempty"`
	IsMilestone   bool   `json:"is_milestone,omitempty"`

	// multiplier_activated
	Factor        float64 `json:"factor,omitempty"`
	DurationHours float64 `json:"duration_hours,omitempty"`
}

// Hub fans engine events out to subscribers. Slow subscribers drop
// messages rather than blocking the publisher — event delivery is
// fire-and-forget and never rolls back the mutation that produced it.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. Returns the channel and an
// unsubscribe func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	}
}

// Publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Subscriber too slow — drop
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func grantAppliedEvent(amount int64, source string, total int64, now time.Time) Event {
	return Event{
		Type:           EventGrantApplied,
		Timestamp:      now.Unix(),
		Amount:         amount,
		Source:         source,
		ResultingTotal: total,
	}
}

func levelUpEvent(prev, next int, title string, milestone bool, now time.Time) Event {
	return Event{
		Type:          EventLevelUp,
		Timestamp:     now.Unix(),
		PreviousLevel: prev,
		NewLevel:      next,
		Title:         title,
		IsMilestone:   milestone,
	}
}

// MultiplierActivatedEvent builds the event published when a multiplier
// window opens. Exposed for the harmony engine.
func MultiplierActivatedEvent(factor float64, duration time.Duration, source string, now time.Time) Event {
	return Event{
		Type:          EventMultiplierActivated,
		Timestamp:     now.Unix(),
		Factor:        factor,
		DurationHours: duration.Hours(),
		Source:        source,
	}
}
