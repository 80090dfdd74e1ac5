package operator

import "tagarena/internal/check"

// Mode is the proxy's input-gating state. The disabled overlay is
// tracked separately: a disabled robot in any mode gets zeroed motion.
type Mode uint8

const (
	// ModeWaiting is the idle state between matches. Controls frozen.
	ModeWaiting Mode = iota
	// ModeDebug allows full control without a match, for pit testing.
	ModeDebug
	// ModeReady means the operator declared ready. Controls frozen.
	ModeReady
	// ModePlaying allows control while a match runs.
	ModePlaying
)

func (m Mode) String() string {
	switch m {
	case ModeWaiting:
		return "waiting"
	case ModeDebug:
		return "debug"
	case ModeReady:
		return "ready"
	case ModePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// InputAllowed reports whether driver motion and fire pass through.
func (m Mode) InputAllowed() bool {
	return m == ModePlaying || m == ModeDebug
}

// CanTransition reports whether the mode change is legal. MatchStart
// may arrive while unready (the coordinator forces readiness), so
// Playing is reachable from everything but itself.
func (m Mode) CanTransition(to Mode) bool {
	switch m {
	case ModeWaiting:
		return to == ModeReady || to == ModeDebug || to == ModePlaying
	case ModeDebug:
		return to == ModeWaiting || to == ModeReady || to == ModePlaying
	case ModeReady:
		return to == ModeWaiting || to == ModeDebug || to == ModePlaying
	case ModePlaying:
		return to == ModeWaiting
	default:
		return false
	}
}

// Transition validates a mode change and returns the new mode.
func (m Mode) Transition(to Mode) Mode {
	ok := m.CanTransition(to)
	check.Assertf(ok, "operator mode transition: %s -> %s", m, to)
	if !ok {
		return m
	}
	return to
}
