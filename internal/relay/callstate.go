package relay

import (
	"log/slog"
	"sync"
)

type callPhase int

const (
	phaseIdle callPhase = iota
	phaseRinging
	phaseActive
)

func (p callPhase) String() string {
	switch p {
	case phaseRinging:
		return "ringing"
	case phaseActive:
		return "active"
	default:
		return "idle"
	}
}

// callTracker shadows call signaling with an explicit state machine
// (idle -> ringing -> active -> idle) purely for observability. Signals are
// relayed regardless of the observed phase; an out-of-order transition is a
// log line, never a rejection.
type callTracker struct {
	mu     sync.Mutex
	pairs  map[string]callPhase // 1:1 calls, keyed by unordered user pair
	groups map[string]string    // active group calls, keyed by group id -> starter
	logger *slog.Logger
}

func newCallTracker(logger *slog.Logger) *callTracker {
	return &callTracker{
		pairs:  make(map[string]callPhase),
		groups: make(map[string]string),
		logger: logger.With(slog.String("component", "call_tracker")),
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func (t *callTracker) observe(from, to, signal string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey(from, to)
	phase := t.pairs[key]

	var next callPhase
	inOrder := true
	switch signal {
	case EventCallRequest:
		next, inOrder = phaseRinging, phase == phaseIdle
	case EventCallAccepted:
		next, inOrder = phaseActive, phase == phaseRinging
	case EventCallRejected:
		next, inOrder = phaseIdle, phase == phaseRinging
	case EventCallEnded:
		next, inOrder = phaseIdle, phase != phaseIdle
	default:
		return
	}

	if !inOrder {
		t.logger.Warn("Call signal out of order",
			slog.String("signal", signal),
			slog.String("observedPhase", phase.String()),
			slog.String("from", from),
			slog.String("to", to),
		)
	}

	if next == phaseIdle {
		delete(t.pairs, key)
	} else {
		t.pairs[key] = next
	}
}

func (t *callTracker) observeGroup(groupID, userID, signal string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, active := t.groups[groupID]
	switch signal {
	case EventGroupCallStarted:
		if active {
			t.logger.Warn("Group call started while one is already observed",
				slog.String("groupID", groupID),
				slog.String("userID", userID),
			)
		}
		t.groups[groupID] = userID
	case EventGroupCallEnded:
		if !active {
			t.logger.Warn("Group call ended without an observed start",
				slog.String("groupID", groupID),
				slog.String("userID", userID),
			)
		}
		delete(t.groups, groupID)
	}
}
