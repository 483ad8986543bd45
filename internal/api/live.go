package api

import (
	"encoding/json"
	"net/http"

	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/infra/observability"
)

// ─── Live Event Feed ────────────────────────────────────────────────────────
// Server-Sent Events stream of engine events (grants, level-ups, multiplier
// activations) for the desktop UI. SSE instead of WebSocket for simplicity
// and HTTP/2 compatibility.

// LiveFeed bridges the engine's event hub to SSE clients.
type LiveFeed struct {
	hub *engine.Hub
}

// NewLiveFeed wires the feed to an engine hub.
func NewLiveFeed(hub *engine.Hub) *LiveFeed {
	return &LiveFeed{hub: hub}
}

// HandleSSE serves the live event feed.
// GET /api/xp/live
func (f *LiveFeed) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, unsub := f.hub.Subscribe()
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	observability.FeedSubscribers.Inc()
	defer observability.FeedSubscribers.Dec()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
