package coordinator

import (
	"log/slog"
	"net/netip"

	"tagarena"
	"tagarena/events"
	"tagarena/wire"
)

// Handle consumes one decoded datagram from the UDP receive loop.
func (c *Coordinator) Handle(msg wire.Message, from netip.AddrPort) {
	switch m := msg.(type) {
	case *wire.Register:
		c.handleRegister(m.TeamID, m.TeamName, m.RobotName, m.Role, m.ListenPort, from, true)
	case *wire.DiscoveryResponse:
		c.handleRegister(m.TeamID, m.TeamName, m.RobotName, m.Role, m.ListenPort, from, false)
	case *wire.Heartbeat:
		c.handleHeartbeat(m, from)
	case *wire.ReadyStatus:
		c.handleReadyStatus(m, from)
	case *wire.HitReport:
		c.applyHit(m, from)
	default:
		slog.Debug("unexpected message at coordinator", "type", msg.WireType(), "from", from)
	}
}

// handleRegister upserts a roster entry from either a REGISTER or a
// DISCOVERY_RESPONSE; only the former is acknowledged.
func (c *Coordinator) handleRegister(rawID int, teamName, robotName, role string, listenPort int, from netip.AddrPort, ack bool) {
	id, err := tagarena.ParseTeamID(rawID)
	if err != nil {
		slog.Warn("rejecting registration", "from", from, "err", err)
		return
	}

	// The advertised listen port is where the party receives; the
	// source port may be ephemeral.
	addr := from
	if listenPort > 0 && listenPort <= 65535 {
		addr = netip.AddrPortFrom(from.Addr(), uint16(listenPort))
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.upsertLocked(id, teamName, robotName, role, addr, now)
	c.mu.Unlock()

	if ack {
		if err := c.send.Send(&wire.RegisterAck{Status: "connected"}, from); err != nil {
			slog.Warn("register ack", "team", id, "err", err)
		}
	}
}

func (c *Coordinator) handleHeartbeat(m *wire.Heartbeat, from netip.AddrPort) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.teamByIDOrAddrLocked(m.TeamID, from)
	if t == nil {
		return
	}
	touchContactLocked(t, from, now)
}

func (c *Coordinator) handleReadyStatus(m *wire.ReadyStatus, from netip.AddrPort) {
	id, err := tagarena.ParseTeamID(m.TeamID)
	if err != nil {
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.roster[id]
	if !ok {
		return
	}
	touchContactLocked(t, from, now)
	if t.Ready != m.Ready {
		t.Ready = m.Ready
		c.publishLocked(events.Event{Kind: events.KindRegister, At: now, Team: id,
			Note: "ready=" + boolStr(m.Ready)})
		slog.Info("ready status", "team", id, "ready", m.Ready)
	}
}

// teamByIDOrAddrLocked resolves a sender to a roster entry, preferring
// the declared team id, falling back to endpoint match.
func (c *Coordinator) teamByIDOrAddrLocked(rawID int, from netip.AddrPort) *tagarena.Team {
	if id, err := tagarena.ParseTeamID(rawID); err == nil {
		if t, ok := c.roster[id]; ok {
			return t
		}
	}
	for _, t := range c.roster {
		if from == t.OperatorAddr || from == t.RobotAddr {
			return t
		}
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
