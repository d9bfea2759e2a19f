package execution

import (
	"log"
	"sync"
	"time"
)

type cooldownKey struct {
	instrument string
	action     ActionKind
}

// cooldownTable suppresses duplicate submissions: after an accepted
// request for (instrument, action), further requests for the same pair
// inside the window are dropped. Suppression is deliberately quiet; a
// strategy re-entering on every tick is expected behavior, not an error.
type cooldownTable struct {
	mu     sync.Mutex
	window time.Duration
	last   map[cooldownKey]time.Time
}

func newCooldownTable(window time.Duration) *cooldownTable {
	return &cooldownTable{
		window: window,
		last:   make(map[cooldownKey]time.Time),
	}
}

// allow reports whether a submission may proceed and, if so, records it.
func (ct *cooldownTable) allow(instrument string, action ActionKind, now time.Time) bool {
	if ct.window <= 0 {
		return true
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := cooldownKey{instrument: instrument, action: action}
	if prev, ok := ct.last[key]; ok && now.Sub(prev) < ct.window {
		log.Printf("[Guard] %s %s suppressed, %.0fms since last submission",
			instrument, action, now.Sub(prev).Seconds()*1000)
		mtxGuardSuppressed.Inc()
		return false
	}
	ct.last[key] = now
	return true
}

// forget rolls back a submission recorded at the given instant. Used when
// the request failed locally and never reached the venue, so the window is
// not consumed by it. A newer entry for the key is left alone.
func (ct *cooldownTable) forget(instrument string, action ActionKind, at time.Time) {
	if ct.window <= 0 {
		return
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := cooldownKey{instrument: instrument, action: action}
	if prev, ok := ct.last[key]; ok && prev.Equal(at) {
		delete(ct.last, key)
	}
}

// reset clears the table, used when the trading day rolls over.
func (ct *cooldownTable) reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.last = make(map[cooldownKey]time.Time)
}
