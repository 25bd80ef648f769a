package scheduler

import (
	"sync"
	"time"
)

// RefreshWatermark tracks refresh progress and the per-sport event IDs that
// have already been ingested. All mutation happens under its internal lock;
// status queries never block on an in-progress refresh.
type RefreshWatermark struct {
	mu           sync.RWMutex
	lastRunStart time.Time
	lastRunEnd   time.Time
	inFlight     bool
	seenEvents   map[string]map[string]struct{} // sport -> event IDs
}

// NewRefreshWatermark creates an empty watermark.
func NewRefreshWatermark() *RefreshWatermark {
	return &RefreshWatermark{
		seenEvents: make(map[string]map[string]struct{}),
	}
}

// BeginRun marks a refresh as started.
func (w *RefreshWatermark) BeginRun(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRunStart = at
	w.inFlight = true
}

// EndRun marks the current refresh as finished.
func (w *RefreshWatermark) EndRun(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRunEnd = at
	w.inFlight = false
}

// MarkSeen records an event ID for a sport, returning false when the event
// had already been seen.
func (w *RefreshWatermark) MarkSeen(sportKey, eventID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	events, ok := w.seenEvents[sportKey]
	if !ok {
		events = make(map[string]struct{})
		w.seenEvents[sportKey] = events
	}

	if _, seen := events[eventID]; seen {
		return false
	}
	events[eventID] = struct{}{}
	return true
}

// Seen reports whether an event ID has been ingested for a sport.
func (w *RefreshWatermark) Seen(sportKey, eventID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	events, ok := w.seenEvents[sportKey]
	if !ok {
		return false
	}
	_, seen := events[eventID]
	return seen
}

// Snapshot returns the current refresh timestamps and in-flight flag.
func (w *RefreshWatermark) Snapshot() (lastStart, lastEnd time.Time, inFlight bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRunStart, w.lastRunEnd, w.inFlight
}
