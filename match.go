package tagarena

import (
	"time"

	"tagarena/internal/check"
)

// MatchPhase is the coordinator's match lifecycle state.
type MatchPhase uint8

const (
	PhaseIdle MatchPhase = iota
	PhaseArmed
	PhaseRunning
	PhaseEnded
)

func (p MatchPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the phase change is legal. Callers
// handling external requests check this first and reject with an error;
// Transition is for changes the caller has already validated.
func (p MatchPhase) CanTransition(to MatchPhase) bool {
	switch p {
	case PhaseIdle:
		return to == PhaseArmed
	case PhaseArmed:
		return to == PhaseRunning || to == PhaseIdle
	case PhaseRunning:
		return to == PhaseEnded
	case PhaseEnded:
		return to == PhaseArmed
	default:
		return false
	}
}

// Transition validates a phase change and returns the new phase.
// Invalid transitions keep the current phase in release builds.
func (p MatchPhase) Transition(to MatchPhase) MatchPhase {
	ok := p.CanTransition(to)
	check.Assertf(ok, "match transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// HitKind distinguishes IR hits from referee awards in the hit log.
type HitKind uint8

const (
	HitIR HitKind = iota
	HitAward
)

func (k HitKind) String() string {
	switch k {
	case HitIR:
		return "hit"
	case HitAward:
		return "award"
	default:
		return "unknown"
	}
}

// AwardCategory names a referee bonus. Point values come from config.
type AwardCategory string

const (
	AwardRetrieval  AwardCategory = "retrieval"
	AwardSteal      AwardCategory = "steal"
	AwardPossession AwardCategory = "possession"
)

// Hit is one immutable hit-log record. For HitAward records Defender is
// zero and Category names the bonus.
type Hit struct {
	Sequence int
	T        time.Duration // since match start
	Attacker TeamID
	Defender TeamID
	Points   int
	Kind     HitKind
	Category AwardCategory
}

// Match is the single mutable match instance a coordinator owns.
type Match struct {
	ID           string
	Phase        MatchPhase
	Duration     time.Duration
	StartTime    time.Time
	EndTime      time.Time
	Participants []TeamID
	Scores       map[TeamID]Score
	HitLog       []Hit
}

// Participant reports whether id was selected into this match.
func (m *Match) Participant(id TeamID) bool {
	for _, p := range m.Participants {
		if p == id {
			return true
		}
	}
	return false
}
