package robot

import (
	"context"
	"log/slog"
	"math"
	"net/netip"
	"sync"
	"time"

	"tagarena"
	"tagarena/config"
	"tagarena/internal/check"
	"tagarena/robot/ir"
	"tagarena/wire"
)

// applyTick is the actuator refresh rate.
const applyTick = 20 * time.Millisecond

// Hit reports are retransmitted until the coordinator's ROBOT_DISABLED
// acknowledges them, bounded by hitReportWindow.
const (
	hitReportInterval = 500 * time.Millisecond
	hitReportWindow   = 5 * time.Second
)

// inputDeadband separates driver intent from stick noise when deciding
// power-save standby.
const inputDeadband = 0.05

// pendingHit is an unacknowledged hit report.
type pendingHit struct {
	report  wire.HitReport
	nextAt  time.Time
	expires time.Time
}

// Agent is the on-robot process.
type Agent struct {
	cfg      *config.Config
	clock    tagarena.Clock
	send     Sender
	actuator Actuator
	emitter  Emitter
	timing   ir.Timing
	decoder  *ir.Decoder

	mu            sync.Mutex
	coordAddr     netip.AddrPort
	operatorAddr  netip.AddrPort
	lastCommand   wire.Control
	lastCommandAt time.Time
	lastInputAt   time.Time
	standby       bool
	gameActive    bool
	operatorReady bool
	matchEpoch    time.Time
	registered    bool
	score         tagarena.Score
	disabled      tagarena.DisabledState
	lastFire      time.Time
	pending       *pendingHit

	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts an Agent, mainly for tests.
type Option func(*Agent)

// WithClock substitutes the time source.
func WithClock(clock tagarena.Clock) Option {
	return func(a *Agent) { a.clock = clock }
}

// New builds an Agent. The config must carry a valid team identity.
func New(cfg *config.Config, send Sender, actuator Actuator, emitter Emitter, opts ...Option) *Agent {
	check.Assert(cfg != nil, "robot.New: cfg must not be nil")
	check.Assert(send != nil, "robot.New: send must not be nil")
	check.Assert(actuator != nil, "robot.New: actuator must not be nil")
	check.Assert(emitter != nil, "robot.New: emitter must not be nil")

	timing := ir.TimingFromConfig(cfg.IR)
	a := &Agent{
		cfg:      cfg,
		clock:    tagarena.RealClock{},
		send:     send,
		actuator: actuator,
		emitter:  emitter,
		timing:   timing,
		decoder:  ir.NewDecoder(timing),
	}
	if cfg.Network.CoordinatorIP != "" {
		if ip, err := netip.ParseAddr(cfg.Network.CoordinatorIP); err == nil {
			a.coordAddr = netip.AddrPortFrom(ip, uint16(cfg.Network.CoordinatorPort))
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the apply and heartbeat loops.
func (a *Agent) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.run(ctx)
}

// Stop cancels the loops, waits for them, and halts the drivetrain.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.actuator.Stop()
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)

	apply := time.NewTicker(applyTick)
	defer apply.Stop()
	pulse := time.NewTicker(a.cfg.HeartbeatInterval())
	defer pulse.Stop()

	a.register()

	for {
		select {
		case <-ctx.Done():
			return
		case <-apply.C:
			a.tickApply()
		case <-pulse.C:
			a.tickPulse()
		}
	}
}

// tickApply refreshes the actuator from the last command and drives
// the watchdogs: stale commands stop motion, long silence enters
// standby, and unacknowledged hit reports are retransmitted.
func (a *Agent) tickApply() {
	now := a.clock.Now()

	a.mu.Lock()
	cmd := a.lastCommand
	age := now.Sub(a.lastCommandAt)
	idle := now.Sub(a.lastInputAt)
	neverActive := a.lastInputAt.IsZero()
	frozen := a.disabled.Active(now)

	// Standby keys off driver intent, not datagram arrival: an idle
	// operator still streams Control at 30 Hz, and the drivetrain must
	// power down regardless. Never power down while hit-disabled, so the
	// disable indicator stays visible to the referee.
	wantStandby := (neverActive || idle > a.cfg.PowerSaveTimeout()) && !frozen
	standbyChanged := wantStandby != a.standby
	a.standby = wantStandby

	var resend *wire.HitReport
	var coord netip.AddrPort
	if a.pending != nil {
		if !a.pending.expires.After(now) {
			slog.Warn("hit report never acknowledged, dropping",
				"attacker", a.pending.report.Data.AttackingTeam)
			a.pending = nil
		} else if !a.pending.nextAt.After(now) {
			r := a.pending.report
			resend = &r
			coord = a.coordAddr
			a.pending.nextAt = now.Add(hitReportInterval)
		}
	}
	a.mu.Unlock()

	if standbyChanged {
		a.actuator.Standby(wantStandby)
		if wantStandby && !neverActive {
			slog.Info("entering standby", "idle", idle)
		}
	}

	switch {
	case wantStandby, frozen, age > a.cfg.CommandTimeout(), cmd.EStop:
		a.actuator.Stop()
	default:
		a.actuator.Drive(cmd.VX, cmd.VY, cmd.VR)
	}
	if !wantStandby {
		a.actuator.SetServos(cmd.Servo1, cmd.Servo2)
		a.actuator.SetGPIO(cmd.GPIO)
		a.actuator.SetLights(cmd.Lights)
	}

	if resend != nil && coord.IsValid() {
		if err := a.send.Send(resend, coord); err != nil {
			slog.Debug("hit report resend", "err", err)
		}
	}
}

// tickPulse heartbeats the coordinator with score diagnostics and
// re-registers while unacknowledged.
func (a *Agent) tickPulse() {
	now := a.clock.Now()

	a.mu.Lock()
	coord := a.coordAddr
	registered := a.registered
	hb := &wire.Heartbeat{
		TeamID:     a.cfg.Team.TeamID,
		GameActive: a.gameActive,
		Points:     a.score.Points,
		Timestamp:  unix(now),
	}
	a.mu.Unlock()

	if !coord.IsValid() {
		return
	}
	if err := a.send.Send(hb, coord); err != nil {
		slog.Debug("heartbeat", "err", err)
	}
	if !registered {
		a.register()
	}
}

// register announces this robot to the coordinator.
func (a *Agent) register() {
	a.mu.Lock()
	coord := a.coordAddr
	a.mu.Unlock()
	if !coord.IsValid() || a.cfg.Team.TeamID == 0 {
		return
	}
	msg := &wire.Register{
		TeamID:     a.cfg.Team.TeamID,
		TeamName:   a.cfg.Team.TeamName,
		RobotName:  a.cfg.Team.RobotName,
		Role:       "robot",
		ListenPort: a.cfg.Network.RobotListenPort,
		Timestamp:  unix(a.clock.Now()),
	}
	if err := a.send.Send(msg, coord); err != nil {
		slog.Warn("register", "err", err)
	}
}

// FeedIR consumes one received IR mark from the receiver glue. A
// decoded frame becomes a hit.
func (a *Agent) FeedIR(mark, gapBefore time.Duration) {
	if attacker, ok := a.decoder.Pulse(mark, gapBefore); ok {
		a.onHit(attacker)
	}
}

// onHit applies the local disable and starts reporting. The robot is
// the authority on its own hit state: it disables itself even outside
// a match, which is how pit testing verifies the tag chain.
func (a *Agent) onHit(attacker tagarena.TeamID) {
	now := a.clock.Now()
	own := tagarena.TeamID(a.cfg.Team.TeamID)
	if attacker == own {
		return
	}

	a.mu.Lock()
	if a.disabled.Active(now) {
		a.mu.Unlock()
		return
	}
	a.disabled = tagarena.DisabledState{Until: now.Add(a.cfg.DisableDuration()), By: attacker}
	report := wire.HitReport{
		TeamID: int(own),
		Data: wire.HitData{
			AttackingTeam: int(attacker),
			DefendingTeam: int(own),
			Timestamp:     unix(now),
		},
		Timestamp: unix(now),
	}
	if a.gameActive && !a.matchEpoch.IsZero() {
		report.Data.GameTime = now.Sub(a.matchEpoch).Seconds()
	}
	a.pending = &pendingHit{
		report:  report,
		nextAt:  now.Add(hitReportInterval),
		expires: now.Add(hitReportWindow),
	}
	coord := a.coordAddr
	a.mu.Unlock()

	a.actuator.Stop()
	slog.Info("tagged", "by", attacker)

	if coord.IsValid() {
		r := report
		if err := a.send.Send(&r, coord); err != nil {
			slog.Debug("hit report", "err", err)
		}
	}
}

// Fire gates and fires the emitter. Returns whether a frame went out.
// Firing is legal in a running match or in debug, meaning no match is
// active and the operator has not declared ready. Between ready-up and
// match start even a raw fire command is refused.
func (a *Agent) fire(now time.Time) bool {
	a.mu.Lock()
	armed := a.gameActive || !a.operatorReady
	blocked := !armed || a.disabled.Active(now) || now.Sub(a.lastFire) < a.cfg.WeaponCooldown()
	if !blocked {
		a.lastFire = now
	}
	a.mu.Unlock()

	if blocked {
		return false
	}
	frame := ir.Encode(a.timing, tagarena.TeamID(a.cfg.Team.TeamID))
	if err := a.emitter.Transmit(frame); err != nil {
		slog.Error("ir transmit", "err", err)
		return false
	}
	return true
}

// nontrivialInput reports whether a command carries real driver
// intent: motion above the deadband, a fire or estop request, or a
// change to the servo, GPIO, or light outputs.
func nontrivialInput(prev, cur wire.Control) bool {
	if math.Abs(cur.VX) > inputDeadband || math.Abs(cur.VY) > inputDeadband || math.Abs(cur.VR) > inputDeadband {
		return true
	}
	if cur.Fire || cur.EStop {
		return true
	}
	return cur.Servo1 != prev.Servo1 || cur.Servo2 != prev.Servo2 ||
		cur.GPIO != prev.GPIO || cur.Lights != prev.Lights
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(f float64) time.Time {
	return time.Unix(0, int64(f*float64(time.Second)))
}
