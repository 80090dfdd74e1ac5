package robot

import (
	"log/slog"
	"net/netip"
	"time"

	"tagarena"
	"tagarena/wire"
)

// Handle consumes one decoded datagram from the UDP receive loop.
func (a *Agent) Handle(msg wire.Message, from netip.AddrPort) {
	switch m := msg.(type) {
	case *wire.Control:
		a.handleControl(m, from)
	case *wire.ConfigRequest:
		a.handleConfigRequest(from)
	case *wire.RegisterAck:
		a.handleRegisterAck(from)
	case *wire.DiscoveryBeacon:
		a.handleDiscovery(m, from)
	case *wire.Heartbeat:
		// Coordinator liveness only; nothing to update locally.
	case *wire.ReadyStatus:
		a.handleReadyStatus(m)
	case *wire.MatchStart:
		a.handleMatchStart(m)
	case *wire.MatchEnd:
		a.handleMatchEnd()
	case *wire.ScoreUpdate:
		a.handleScore(m)
	case *wire.RobotDisabled:
		a.handleDisabled(m)
	case *wire.RobotEnabled:
		a.handleEnabled()
	default:
		slog.Debug("unexpected message at robot", "type", msg.WireType(), "from", from)
	}
}

// handleControl records the command for the apply loop, fires if asked,
// and answers with the robot's authoritative status.
func (a *Agent) handleControl(m *wire.Control, from netip.AddrPort) {
	now := a.clock.Now()

	a.mu.Lock()
	a.operatorAddr = from
	if nontrivialInput(a.lastCommand, *m) {
		a.lastInputAt = now
	}
	a.lastCommand = *m
	a.lastCommandAt = now
	a.mu.Unlock()

	fired := false
	if m.Fire {
		fired = a.fire(now)
	}

	if err := a.send.Send(a.statusReply(now, fired), from); err != nil {
		slog.Debug("status reply", "err", err)
	}
}

func (a *Agent) statusReply(now time.Time, fired bool) *wire.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := &wire.Status{
		GameStatus: wire.GameStatus{
			GameActive: a.gameActive,
			IsReady:    a.registered,
			Points:     a.score.Points,
			Kills:      a.score.Kills,
			Deaths:     a.score.Deaths,
		},
		FireSuccess: fired,
	}
	if a.disabled.Active(now) {
		st.IRStatus = wire.IRStatus{
			IsHit:         true,
			HitByTeam:     int(a.disabled.By),
			TimeRemaining: a.disabled.Until.Sub(now).Seconds(),
		}
	}
	return st
}

// handleConfigRequest answers with the robot's on-disk identity. The
// robot is the authoritative source; the operator proxy boots from
// this.
func (a *Agent) handleConfigRequest(from netip.AddrPort) {
	resp := &wire.ConfigResponse{Config: wire.ConfigPayload{
		Team: wire.TeamInfo{
			TeamID:    a.cfg.Team.TeamID,
			TeamName:  a.cfg.Team.TeamName,
			RobotName: a.cfg.Team.RobotName,
		},
		Network: wire.NetworkInfo{
			CoordinatorIP:   a.cfg.Network.CoordinatorIP,
			CoordinatorPort: a.cfg.Network.CoordinatorPort,
			RobotListenPort: a.cfg.Network.RobotListenPort,
		},
	}}
	if err := a.send.Send(resp, from); err != nil {
		slog.Warn("config response", "err", err)
	}
}

func (a *Agent) handleRegisterAck(from netip.AddrPort) {
	a.mu.Lock()
	a.registered = true
	a.mu.Unlock()
	slog.Info("registered with coordinator", "coordinator", from)
}

func (a *Agent) handleDiscovery(m *wire.DiscoveryBeacon, from netip.AddrPort) {
	addr := from
	if ip, err := netip.ParseAddr(m.CoordIP); err == nil && m.CoordPort > 0 {
		addr = netip.AddrPortFrom(ip, uint16(m.CoordPort))
	} else if m.CoordPort > 0 {
		addr = netip.AddrPortFrom(from.Addr(), uint16(m.CoordPort))
	}

	a.mu.Lock()
	moved := a.coordAddr != addr
	a.coordAddr = addr
	if moved {
		a.registered = false
	}
	needRegister := moved || !a.registered
	a.mu.Unlock()

	if needRegister {
		a.register()
	}
}

// handleReadyStatus mirrors the operator's declared readiness, relayed
// by the proxy. The fire gate uses it to tell debug from pre-match.
func (a *Agent) handleReadyStatus(m *wire.ReadyStatus) {
	a.mu.Lock()
	a.operatorReady = m.Ready
	a.mu.Unlock()
}

func (a *Agent) handleMatchStart(m *wire.MatchStart) {
	now := a.clock.Now()
	a.mu.Lock()
	a.gameActive = true
	a.matchEpoch = now
	a.score = tagarena.Score{}
	a.mu.Unlock()
	slog.Info("match started", "match", m.MatchID, "duration_s", m.Duration)
}

func (a *Agent) handleMatchEnd() {
	a.mu.Lock()
	a.gameActive = false
	a.mu.Unlock()
	slog.Info("match ended")
}

// handleScore adopts the coordinator's absolute totals.
func (a *Agent) handleScore(m *wire.ScoreUpdate) {
	a.mu.Lock()
	a.score = tagarena.Score{Points: m.Points, Kills: m.Kills, Deaths: m.Deaths}
	a.mu.Unlock()
}

// handleDisabled acknowledges our hit report and adopts the
// coordinator's absolute window.
func (a *Agent) handleDisabled(m *wire.RobotDisabled) {
	a.mu.Lock()
	a.pending = nil
	a.disabled = tagarena.DisabledState{
		Until: fromUnix(m.DisabledUntil),
		By:    tagarena.TeamID(m.DisabledByID),
	}
	a.mu.Unlock()
	a.actuator.Stop()
}

func (a *Agent) handleEnabled() {
	a.mu.Lock()
	a.disabled = tagarena.DisabledState{}
	a.pending = nil
	a.mu.Unlock()
	slog.Info("enabled by coordinator")
}
