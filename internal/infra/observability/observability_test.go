package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGauges(t *testing.T) {
	XPTotal.Set(1234)
	if got := testutil.ToFloat64(XPTotal); got != 1234 {
		t.Errorf("XPTotal = %v, want 1234", got)
	}

	CurrentLevel.Set(5)
	if got := testutil.ToFloat64(CurrentLevel); got != 5 {
		t.Errorf("CurrentLevel = %v, want 5", got)
	}

	FeedSubscribers.Inc()
	FeedSubscribers.Inc()
	FeedSubscribers.Dec()
	if got := testutil.ToFloat64(FeedSubscribers); got != 1 {
		t.Errorf("FeedSubscribers = %v, want 1", got)
	}
	FeedSubscribers.Dec()
}

func TestLabeledCounters(t *testing.T) {
	before := testutil.ToFloat64(XPGranted.WithLabelValues("habit"))
	XPGranted.WithLabelValues("habit").Inc()
	if got := testutil.ToFloat64(XPGranted.WithLabelValues("habit")); got != before+1 {
		t.Errorf("XPGranted{habit} = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(XPRejected.WithLabelValues("daily_cap_reached"))
	XPRejected.WithLabelValues("daily_cap_reached").Inc()
	if got := testutil.ToFloat64(XPRejected.WithLabelValues("daily_cap_reached")); got != before+1 {
		t.Errorf("XPRejected{daily_cap_reached} = %v, want %v", got, before+1)
	}
}
