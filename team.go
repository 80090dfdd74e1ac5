package tagarena

import (
	"fmt"
	"net/netip"
	"time"
)

// TeamID identifies a competing team. Valid IDs are 1..255 so the ID
// fits in the single data byte of the IR protocol. Zero means unset.
type TeamID uint8

// ParseTeamID validates a wire-level team id.
func ParseTeamID(raw int) (TeamID, error) {
	if raw < 1 || raw > 255 {
		return 0, fmt.Errorf("team id %d out of range [1,255]", raw)
	}
	return TeamID(raw), nil
}

// Team is one roster entry. Entries are created on first registration
// from either side and never deleted, only aged into Offline.
type Team struct {
	ID        TeamID
	TeamName  string
	RobotName string

	// OperatorAddr and RobotAddr are the UDP endpoints each side
	// registered from. Either may be unset until that side shows up.
	OperatorAddr netip.AddrPort
	RobotAddr    netip.AddrPort

	Ready bool

	LastOperatorContact time.Time
	LastRobotContact    time.Time
}

// LastContact returns the most recent contact from either side.
func (t Team) LastContact() time.Time {
	if t.LastOperatorContact.After(t.LastRobotContact) {
		return t.LastOperatorContact
	}
	return t.LastRobotContact
}

// Liveness describes how recently a team has been heard from.
type Liveness uint8

const (
	Offline Liveness = iota
	Stale
	Online
)

func (l Liveness) String() string {
	switch l {
	case Online:
		return "online"
	case Stale:
		return "stale"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// LivenessThresholds derives Liveness from contact age.
type LivenessThresholds struct {
	Stale   time.Duration
	Offline time.Duration
}

// Classify maps a contact age onto a liveness state.
func (lt LivenessThresholds) Classify(age time.Duration) Liveness {
	switch {
	case age >= lt.Offline:
		return Offline
	case age >= lt.Stale:
		return Stale
	default:
		return Online
	}
}

// Score is one team's tally for the current match. ScoreUpdate messages
// carry these absolute totals, which is what makes redelivery idempotent.
type Score struct {
	Points int
	Kills  int
	Deaths int
}

// DisabledState marks a team as hit-disabled until a deadline.
type DisabledState struct {
	Until time.Time
	By    TeamID
}

// Active reports whether the disable window is still open at now.
func (d DisabledState) Active(now time.Time) bool {
	return !d.Until.IsZero() && d.Until.After(now)
}
