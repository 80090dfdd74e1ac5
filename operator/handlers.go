package operator

import (
	"log/slog"
	"net/netip"
	"time"

	"tagarena"
	"tagarena/wire"
)

// Handle consumes one decoded datagram from the UDP receive loop.
func (p *Proxy) Handle(msg wire.Message, from netip.AddrPort) {
	switch m := msg.(type) {
	case *wire.ConfigResponse:
		p.handleConfig(m)
	case *wire.RegisterAck:
		p.handleRegisterAck(from)
	case *wire.DiscoveryBeacon:
		p.handleDiscovery(m, from)
	case *wire.Heartbeat:
		p.touchCoordinator()
	case *wire.ReadyCheck:
		p.handleReadyCheck()
	case *wire.ForceReady:
		p.handleForceReady(m)
	case *wire.MatchStart:
		p.handleMatchStart(m)
	case *wire.MatchEnd:
		p.handleMatchEnd()
	case *wire.ScoreUpdate:
		p.handleScore(m)
	case *wire.RobotDisabled:
		p.handleDisabled(m)
	case *wire.RobotEnabled:
		p.handleEnabled()
	case *wire.Status:
		p.handleStatus(m)
	default:
		slog.Debug("unexpected message at operator", "type", msg.WireType(), "from", from)
	}
}

func (p *Proxy) handleConfig(m *wire.ConfigResponse) {
	p.mu.Lock()
	first := p.team.TeamID == 0
	p.team = m.Config.Team
	if first {
		close(p.configured)
	}
	p.mu.Unlock()
}

func (p *Proxy) handleRegisterAck(from netip.AddrPort) {
	p.mu.Lock()
	p.registered = true
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()
	slog.Info("registered with coordinator", "coordinator", from)
}

// handleDiscovery repoints the proxy at the beaconing coordinator and
// registers if it is not already. This is how both sides recover from
// a coordinator restart.
func (p *Proxy) handleDiscovery(m *wire.DiscoveryBeacon, from netip.AddrPort) {
	addr := from
	if ip, err := netip.ParseAddr(m.CoordIP); err == nil && m.CoordPort > 0 {
		addr = netip.AddrPortFrom(ip, uint16(m.CoordPort))
	} else if m.CoordPort > 0 {
		addr = netip.AddrPortFrom(from.Addr(), uint16(m.CoordPort))
	}

	p.mu.Lock()
	moved := p.coordAddr != addr
	p.coordAddr = addr
	p.lastCoord = p.clock.Now()
	needRegister := moved || !p.registered
	if moved {
		p.registered = false
	}
	p.mu.Unlock()

	if needRegister {
		p.register()
	}
}

func (p *Proxy) touchCoordinator() {
	p.mu.Lock()
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()
}

func (p *Proxy) handleReadyCheck() {
	p.mu.Lock()
	ready := p.ready
	coord := p.coordAddr
	teamID := p.team.TeamID
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()

	if coord.IsValid() && teamID != 0 {
		msg := &wire.ReadyStatus{TeamID: teamID, Ready: ready, Timestamp: unix(p.clock.Now())}
		if err := p.send.Send(msg, coord); err != nil {
			slog.Warn("ready status", "err", err)
		}
	}
}

func (p *Proxy) handleForceReady(m *wire.ForceReady) {
	p.mu.Lock()
	p.ready = true
	p.lastCoord = p.clock.Now()
	if p.mode != ModePlaying && p.mode != ModeReady {
		p.mode = p.mode.Transition(ModeReady)
	}
	p.mu.Unlock()
	p.relayReadyToRobot(true)
	slog.Info("readiness forced by coordinator", "reason", m.Reason)
}

func (p *Proxy) handleMatchStart(m *wire.MatchStart) {
	p.mu.Lock()
	p.gameActive = true
	p.score = tagarena.Score{}
	p.lastCoord = p.clock.Now()
	if p.mode != ModePlaying {
		p.mode = p.mode.Transition(ModePlaying)
	}
	p.mu.Unlock()
	slog.Info("match started", "match", m.MatchID, "duration_s", m.Duration)
}

func (p *Proxy) handleMatchEnd() {
	p.mu.Lock()
	p.gameActive = false
	p.ready = false
	p.lastCoord = p.clock.Now()
	if p.mode == ModePlaying {
		p.mode = p.mode.Transition(ModeWaiting)
	}
	p.mu.Unlock()
	p.relayReadyToRobot(false)
	slog.Info("match ended")
}

// handleScore adopts the coordinator's absolute totals. Redelivered
// updates are idempotent by construction.
func (p *Proxy) handleScore(m *wire.ScoreUpdate) {
	p.mu.Lock()
	p.score = tagarena.Score{Points: m.Points, Kills: m.Kills, Deaths: m.Deaths}
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()
}

func (p *Proxy) handleDisabled(m *wire.RobotDisabled) {
	p.mu.Lock()
	p.disabled = tagarena.DisabledState{
		Until: fromUnix(m.DisabledUntil),
		By:    tagarena.TeamID(m.DisabledByID),
	}
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()
	slog.Info("robot disabled", "by", m.DisabledBy, "duration_s", m.Duration)
}

func (p *Proxy) handleEnabled() {
	p.mu.Lock()
	p.disabled = tagarena.DisabledState{}
	p.lastCoord = p.clock.Now()
	p.mu.Unlock()
	slog.Info("robot enabled")
}

// handleStatus mirrors the robot's view of its own hit state. The
// robot is authoritative for being hit: if it reports hit before the
// coordinator's verdict lands, adopt its window. A clear report wipes
// leftover state only once the coordinator's window has lapsed.
func (p *Proxy) handleStatus(m *wire.Status) {
	now := p.clock.Now()

	p.mu.Lock()
	p.lastStatus = *m
	locallyDisabled := p.disabled.Active(now)
	switch {
	case m.IRStatus.IsHit && !locallyDisabled:
		p.disabled = tagarena.DisabledState{
			Until: now.Add(time.Duration(m.IRStatus.TimeRemaining * float64(time.Second))),
			By:    tagarena.TeamID(m.IRStatus.HitByTeam),
		}
	case !m.IRStatus.IsHit && !locallyDisabled:
		p.disabled = tagarena.DisabledState{}
	}
	p.mu.Unlock()
}
