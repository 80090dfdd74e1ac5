package coordinator

import (
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"tagarena"
	"tagarena/events"
)

// RoleOperator and RoleRobot are the registration roles on the wire.
const (
	RoleOperator = "operator"
	RoleRobot    = "robot"
)

// TeamStatus is one roster row as exposed to the referee and CLI.
type TeamStatus struct {
	Team          tagarena.Team
	Score         tagarena.Score
	Liveness      tagarena.Liveness
	Disabled      bool
	DisabledUntil time.Time
	DisabledBy    tagarena.TeamID
}

// upsertLocked creates or refreshes a roster entry from a registration
// or discovery response. Entries are never deleted, only aged offline.
func (c *Coordinator) upsertLocked(id tagarena.TeamID, teamName, robotName, role string, addr netip.AddrPort, now time.Time) *tagarena.Team {
	t, ok := c.roster[id]
	if !ok {
		t = &tagarena.Team{ID: id}
		c.roster[id] = t
		c.publishLocked(events.Event{Kind: events.KindRegister, At: now, Team: id, Note: role})
		slog.Info("team registered", "team", id, "name", teamName, "role", role)
	}
	if teamName != "" {
		t.TeamName = teamName
	}
	if robotName != "" {
		t.RobotName = robotName
	}
	switch role {
	case RoleRobot:
		t.RobotAddr = addr
		t.LastRobotContact = now
	default:
		t.OperatorAddr = addr
		t.LastOperatorContact = now
	}
	return t
}

// touchContactLocked refreshes the contact timestamp for whichever side
// the datagram came from. Exact endpoint match wins; otherwise the
// source IP decides, since a side may send from an ephemeral port.
func touchContactLocked(t *tagarena.Team, from netip.AddrPort, now time.Time) {
	switch {
	case from == t.RobotAddr:
		t.LastRobotContact = now
	case from == t.OperatorAddr:
		t.LastOperatorContact = now
	case t.RobotAddr.IsValid() && from.Addr() == t.RobotAddr.Addr():
		t.LastRobotContact = now
	default:
		t.LastOperatorContact = now
	}
}

func (c *Coordinator) thresholds() tagarena.LivenessThresholds {
	return tagarena.LivenessThresholds{
		Stale:   c.cfg.LivenessStale(),
		Offline: c.cfg.LivenessOffline(),
	}
}

// Teams returns the roster sorted by team ID.
func (c *Coordinator) Teams() []TeamStatus {
	now := c.clock.Now()
	lt := c.thresholds()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]TeamStatus, 0, len(c.roster))
	for id, t := range c.roster {
		d := c.disabled[id]
		out = append(out, TeamStatus{
			Team:          *t,
			Score:         c.match.Scores[id],
			Liveness:      lt.Classify(now.Sub(t.LastContact())),
			Disabled:      d.Active(now),
			DisabledUntil: d.Until,
			DisabledBy:    d.By,
		})
	}
	slices.SortFunc(out, func(a, b TeamStatus) int {
		return int(a.Team.ID) - int(b.Team.ID)
	})
	return out
}

// Health summarizes roster liveness for the referee health endpoint.
func (c *Coordinator) Health() tagarena.RosterHealth {
	now := c.clock.Now()
	lt := c.thresholds()

	c.mu.Lock()
	defer c.mu.Unlock()

	var h tagarena.RosterHealth
	for _, t := range c.roster {
		h.Total++
		switch lt.Classify(now.Sub(t.LastContact())) {
		case tagarena.Online:
			h.Online++
		case tagarena.Stale:
			h.Stale++
		default:
			h.Offline++
		}
	}
	return h
}

// MatchView returns a deep copy of the current match.
func (c *Coordinator) MatchView() tagarena.Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.match
	m.Participants = slices.Clone(c.match.Participants)
	m.HitLog = slices.Clone(c.match.HitLog)
	m.Scores = make(map[tagarena.TeamID]tagarena.Score, len(c.match.Scores))
	for id, s := range c.match.Scores {
		m.Scores[id] = s
	}
	return m
}
