package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"tagarena"
	"tagarena/config"
	"tagarena/internal/check"
	"tagarena/wire"
)

// controlTick is the driver control relay rate.
const controlTick = 33 * time.Millisecond

// handshakeRetry is how often CONFIG_REQUEST is repeated until the
// robot answers.
const handshakeRetry = 500 * time.Millisecond

// reRegisterBackoff spaces re-registration attempts after the
// coordinator goes quiet.
const reRegisterBackoff = 5 * time.Second

// ErrHandshakeTimeout means the robot never answered CONFIG_REQUEST.
// Fatal at startup: without the robot's identity the proxy cannot
// register.
var ErrHandshakeTimeout = errors.New("config handshake timed out")

// Sender transmits one encoded message. Satisfied by
// transport.Endpoint.
type Sender interface {
	Send(msg wire.Message, to netip.AddrPort) error
}

// Input is the raw driver state before gating. Velocities are in
// [-1,1], Speed in [0,1].
type Input struct {
	VX, VY, VR float64
	Speed      float64
	Fire       bool
	EStop      bool
	Servo1     float64
	Servo2     float64
	GPIO       [4]bool
	Lights     bool
}

// State is an observable snapshot for the UI layer.
type State struct {
	TeamID      tagarena.TeamID
	TeamName    string
	RobotName   string
	Mode        Mode
	Ready       bool
	GameActive  bool
	Score       tagarena.Score
	Disabled    bool
	DisabledBy  tagarena.TeamID
	DisabledFor time.Duration
	Registered  bool
	CoordAddr   netip.AddrPort
	LastStatus  wire.Status
}

// Proxy is one team's driver-station process.
type Proxy struct {
	cfg        *config.Config
	clock      tagarena.Clock
	send       Sender
	robotAddr  netip.AddrPort
	listenPort int

	mu           sync.Mutex
	team         wire.TeamInfo
	coordAddr    netip.AddrPort
	mode         Mode
	ready        bool
	gameActive   bool
	score        tagarena.Score
	disabled     tagarena.DisabledState
	input        Input
	fireLatch    bool
	lastFire     time.Time
	registered   bool
	lastCoord    time.Time
	nextRegister time.Time
	lastStatus   wire.Status
	configured   chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts a Proxy, mainly for tests.
type Option func(*Proxy)

// WithClock substitutes the time source.
func WithClock(clock tagarena.Clock) Option {
	return func(p *Proxy) { p.clock = clock }
}

// WithListenPort overrides the port advertised in registrations, for
// deployments bound to an ephemeral port instead of the base+id
// convention.
func WithListenPort(port int) Option {
	return func(p *Proxy) { p.listenPort = port }
}

// WithIdentity seeds the team identity so the proxy can skip the robot
// handshake. Used when rebinding onto the conventional port after a
// bootstrap proxy already learned who we are.
func WithIdentity(team wire.TeamInfo) Option {
	return func(p *Proxy) {
		if team.TeamID == 0 {
			return
		}
		p.team = team
		close(p.configured)
	}
}

// New builds a Proxy talking to the robot at robotAddr. The
// coordinator address may be empty; discovery beacons fill it in.
func New(cfg *config.Config, send Sender, robotAddr netip.AddrPort, opts ...Option) *Proxy {
	check.Assert(cfg != nil, "operator.New: cfg must not be nil")
	check.Assert(send != nil, "operator.New: send must not be nil")

	// Debug is the boot mode: the operator drives freely for pit
	// testing until a readiness declaration or a match locks input.
	p := &Proxy{
		cfg:        cfg,
		clock:      tagarena.RealClock{},
		send:       send,
		robotAddr:  robotAddr,
		mode:       ModeDebug,
		configured: make(chan struct{}),
	}
	if cfg.Network.CoordinatorIP != "" {
		if ip, err := netip.ParseAddr(cfg.Network.CoordinatorIP); err == nil {
			p.coordAddr = netip.AddrPortFrom(ip, uint16(cfg.Network.CoordinatorPort))
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handshake blocks until the robot answers CONFIG_REQUEST or the
// configured timeout passes. Must complete before Start.
func (p *Proxy) Handshake(ctx context.Context) error {
	deadline := time.NewTimer(p.cfg.ConfigTimeout())
	defer deadline.Stop()
	retry := time.NewTicker(handshakeRetry)
	defer retry.Stop()

	askOnce := func() {
		if err := p.send.Send(&wire.ConfigRequest{}, p.robotAddr); err != nil {
			slog.Warn("config request", "err", err)
		}
	}
	askOnce()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.configured:
			p.mu.Lock()
			team := p.team
			p.mu.Unlock()
			slog.Info("configured from robot", "team", team.TeamID, "name", team.TeamName)
			return nil
		case <-deadline.C:
			return fmt.Errorf("%w after %s asking %s", ErrHandshakeTimeout, p.cfg.ConfigTimeout(), p.robotAddr)
		case <-retry.C:
			askOnce()
		}
	}
}

// Start launches the control and heartbeat loops.
func (p *Proxy) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop cancels the loops and waits for them to exit.
func (p *Proxy) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Proxy) run(ctx context.Context) {
	defer close(p.done)

	control := time.NewTicker(controlTick)
	defer control.Stop()
	pulse := time.NewTicker(p.cfg.HeartbeatInterval())
	defer pulse.Stop()

	p.register()

	for {
		select {
		case <-ctx.Done():
			return
		case <-control.C:
			p.sendControl()
		case <-pulse.C:
			p.tickPulse()
		}
	}
}

// tickPulse heartbeats the coordinator and watches for it going quiet.
// After the offline threshold the proxy re-registers, then backs off
// between further attempts.
func (p *Proxy) tickPulse() {
	now := p.clock.Now()

	p.mu.Lock()
	coord := p.coordAddr
	teamID := p.team.TeamID
	gameActive := p.gameActive
	points := p.score.Points
	silent := p.registered && !p.lastCoord.IsZero() &&
		now.Sub(p.lastCoord) > p.cfg.LivenessOffline()
	if silent {
		p.registered = false
		p.nextRegister = now.Add(reRegisterBackoff)
	}
	retryDue := !p.registered && !now.Before(p.nextRegister)
	if retryDue {
		p.nextRegister = now.Add(reRegisterBackoff)
	}
	p.mu.Unlock()

	if coord.IsValid() && teamID != 0 {
		hb := &wire.Heartbeat{
			TeamID:     teamID,
			GameActive: gameActive,
			Points:     points,
			Timestamp:  unix(now),
		}
		if err := p.send.Send(hb, coord); err != nil {
			slog.Debug("heartbeat", "err", err)
		}
	}
	if silent {
		slog.Warn("coordinator silent, re-registering", "quiet_for", now.Sub(p.lastCoord))
		p.register()
	} else if retryDue {
		p.register()
	}
}

// register announces this proxy to the coordinator. Harmless to repeat;
// the coordinator upserts.
func (p *Proxy) register() {
	p.mu.Lock()
	coord := p.coordAddr
	team := p.team
	p.mu.Unlock()

	if !coord.IsValid() || team.TeamID == 0 {
		return
	}
	port := p.listenPort
	if port == 0 {
		port = p.cfg.OperatorPort(team.TeamID)
	}
	msg := &wire.Register{
		TeamID:     team.TeamID,
		TeamName:   team.TeamName,
		RobotName:  team.RobotName,
		Role:       "operator",
		ListenPort: port,
		Timestamp:  unix(p.clock.Now()),
	}
	if err := p.send.Send(msg, coord); err != nil {
		slog.Warn("register", "err", err)
	}
}

// SetInput replaces the raw driver state. Called by the input device
// poller at its own rate. Fire is edge-triggered: only a fresh press
// arms the latch the control loop consumes.
func (p *Proxy) SetInput(in Input) {
	p.mu.Lock()
	if in.Fire && !p.input.Fire {
		p.fireLatch = true
	}
	p.input = in
	p.mu.Unlock()
}

// SetReady toggles declared readiness and reports it to the
// coordinator and the robot. Withdrawing readiness returns to Debug.
func (p *Proxy) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = ready
	switch {
	case ready && p.mode.CanTransition(ModeReady) && p.mode != ModePlaying:
		p.mode = p.mode.Transition(ModeReady)
	case !ready && (p.mode == ModeReady || p.mode == ModeWaiting):
		p.mode = p.mode.Transition(ModeDebug)
	}
	coord := p.coordAddr
	teamID := p.team.TeamID
	p.mu.Unlock()

	if coord.IsValid() && teamID != 0 {
		msg := &wire.ReadyStatus{TeamID: teamID, Ready: ready, Timestamp: unix(p.clock.Now())}
		if err := p.send.Send(msg, coord); err != nil {
			slog.Warn("ready status", "err", err)
		}
	}
	p.relayReadyToRobot(ready)
}

// relayReadyToRobot mirrors the declared readiness to the robot, which
// refuses raw fire commands between ready-up and match start.
func (p *Proxy) relayReadyToRobot(ready bool) {
	p.mu.Lock()
	teamID := p.team.TeamID
	p.mu.Unlock()

	msg := &wire.ReadyStatus{TeamID: teamID, Ready: ready, Timestamp: unix(p.clock.Now())}
	if err := p.send.Send(msg, p.robotAddr); err != nil {
		slog.Debug("ready relay", "err", err)
	}
}

// SetDebug enters or leaves pit-testing mode. Ignored mid-match.
func (p *Proxy) SetDebug(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == ModePlaying {
		return
	}
	if on && p.mode != ModeDebug {
		p.mode = p.mode.Transition(ModeDebug)
	} else if !on && p.mode == ModeDebug {
		p.mode = p.mode.Transition(ModeWaiting)
	}
}

// Team returns the identity learned from the robot, zero until the
// handshake completes.
func (p *Proxy) Team() wire.TeamInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.team
}

// State returns an observable snapshot.
func (p *Proxy) State() State {
	now := p.clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	st := State{
		TeamID:     tagarena.TeamID(p.team.TeamID),
		TeamName:   p.team.TeamName,
		RobotName:  p.team.RobotName,
		Mode:       p.mode,
		Ready:      p.ready,
		GameActive: p.gameActive,
		Score:      p.score,
		Registered: p.registered,
		CoordAddr:  p.coordAddr,
		LastStatus: p.lastStatus,
	}
	if p.disabled.Active(now) {
		st.Disabled = true
		st.DisabledBy = p.disabled.By
		st.DisabledFor = p.disabled.Until.Sub(now)
	}
	return st
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(f float64) time.Time {
	return time.Unix(0, int64(f*float64(time.Second)))
}
