package robot

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"tagarena"
	"tagarena/config"
	"tagarena/robot/ir"
	"tagarena/wire"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sent struct {
	msg wire.Message
	to  netip.AddrPort
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
}

func (s *fakeSender) Send(msg wire.Message, to netip.AddrPort) error {
	s.mu.Lock()
	s.sent = append(s.sent, sent{msg: msg, to: to})
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) ofType(t wire.Type) []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sent
	for _, e := range s.sent {
		if e.msg.WireType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

type fakeActuator struct {
	mu      sync.Mutex
	drives  [][3]float64
	stops   int
	standby []bool
}

func (f *fakeActuator) Drive(vx, vy, vr float64) {
	f.mu.Lock()
	f.drives = append(f.drives, [3]float64{vx, vy, vr})
	f.mu.Unlock()
}

func (f *fakeActuator) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeActuator) SetServos(s1, s2 float64) {}
func (f *fakeActuator) SetGPIO(pins [4]bool)     {}
func (f *fakeActuator) SetLights(on bool)        {}

func (f *fakeActuator) Standby(on bool) {
	f.mu.Lock()
	f.standby = append(f.standby, on)
	f.mu.Unlock()
}

func (f *fakeActuator) driveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drives)
}

func (f *fakeActuator) lastStandby() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.standby) == 0 {
		return false, false
	}
	return f.standby[len(f.standby)-1], true
}

type fakeEmitter struct {
	mu     sync.Mutex
	frames []ir.Frame
}

func (f *fakeEmitter) Transmit(frame ir.Frame) error {
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

var (
	opAddr    = netip.MustParseAddrPort("10.0.0.4:6104")
	coordDest = netip.MustParseAddrPort("10.0.0.100:6000")
)

func newTestAgent(t *testing.T) (*Agent, *fakeClock, *fakeSender, *fakeActuator, *fakeEmitter) {
	t.Helper()
	cfg := config.Default()
	cfg.Team = config.Team{TeamID: 5, TeamName: "lasers", RobotName: "zap"}
	cfg.Network.CoordinatorIP = "10.0.0.100"

	clock := newFakeClock()
	send := &fakeSender{}
	act := &fakeActuator{}
	emit := &fakeEmitter{}
	a := New(cfg, send, act, emit, WithClock(clock))
	return a, clock, send, act, emit
}

func control(in wire.Control) *wire.Control {
	c := in
	return &c
}

// feedFrame plays an encoded IR frame into the agent's decoder.
func feedFrame(a *Agent, attacker tagarena.TeamID) {
	frame := ir.Encode(a.timing, attacker)
	gap := time.Duration(0)
	for i := 0; i < len(frame); i += 2 {
		a.FeedIR(frame[i], gap)
		if i+1 < len(frame) {
			gap = frame[i+1]
		}
	}
}

func TestConfigHandshake(t *testing.T) {
	a, _, send, _, _ := newTestAgent(t)

	a.Handle(&wire.ConfigRequest{}, opAddr)

	resps := send.ofType(wire.TypeConfigResponse)
	if len(resps) != 1 {
		t.Fatalf("got %d CONFIG_RESPONSE, want 1", len(resps))
	}
	cfg := resps[0].msg.(*wire.ConfigResponse).Config
	if cfg.Team.TeamID != 5 || cfg.Team.TeamName != "lasers" {
		t.Fatalf("config team = %+v", cfg.Team)
	}
	if cfg.Network.CoordinatorPort != 6000 || cfg.Network.RobotListenPort != 5005 {
		t.Fatalf("config network = %+v", cfg.Network)
	}
}

func TestControlAppliesAndReplies(t *testing.T) {
	a, _, send, act, _ := newTestAgent(t)

	a.Handle(control(wire.Control{VX: 0.5, VY: -0.25, VR: 0.1}), opAddr)
	a.tickApply()

	if act.driveCount() == 0 {
		t.Fatal("drive never applied")
	}
	act.mu.Lock()
	last := act.drives[len(act.drives)-1]
	act.mu.Unlock()
	if last != [3]float64{0.5, -0.25, 0.1} {
		t.Fatalf("drive = %v", last)
	}

	replies := send.ofType(wire.TypeStatus)
	if len(replies) != 1 || replies[0].to != opAddr {
		t.Fatalf("status replies = %v", replies)
	}
	st := replies[0].msg.(*wire.Status)
	if st.IRStatus.IsHit || st.FireSuccess {
		t.Fatalf("status = %+v", st)
	}
}

func TestCommandTimeoutStopsMotion(t *testing.T) {
	a, clock, _, act, _ := newTestAgent(t)

	a.Handle(control(wire.Control{VX: 1}), opAddr)
	a.tickApply()
	moving := act.driveCount()

	clock.Advance(900 * time.Millisecond)
	a.tickApply()

	if act.driveCount() != moving {
		t.Fatal("drove on a stale command")
	}
	act.mu.Lock()
	stops := act.stops
	act.mu.Unlock()
	if stops == 0 {
		t.Fatal("stale command did not stop motion")
	}
}

func TestPowerSaveStandby(t *testing.T) {
	a, clock, _, act, _ := newTestAgent(t)

	a.Handle(control(wire.Control{VX: 0.3}), opAddr)
	a.tickApply()
	if on, ok := act.lastStandby(); ok && on {
		t.Fatal("standby right after the driver moved")
	}

	// The proxy keeps streaming zero-input datagrams while the sticks
	// are centered. That traffic carries no intent and must not hold
	// the drivetrain awake.
	for i := 0; i < 11; i++ {
		clock.Advance(time.Second)
		a.Handle(control(wire.Control{}), opAddr)
	}
	a.tickApply()
	if on, ok := act.lastStandby(); !ok || !on {
		t.Fatal("idle zero-input stream kept the drivetrain awake")
	}

	// Stick motion above the deadband wakes it.
	a.Handle(control(wire.Control{VX: 0.3}), opAddr)
	a.tickApply()
	if on, _ := act.lastStandby(); on {
		t.Fatal("still in standby after the driver moved")
	}
}

// The weapon is honored only mid-match or in debug. Once the operator
// declares ready the robot refuses raw fire until the match starts.
func TestFireRequiresMatchOrDebug(t *testing.T) {
	a, clock, _, _, emit := newTestAgent(t)

	a.Handle(&wire.ReadyStatus{TeamID: 5, Ready: true}, opAddr)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 0 {
		t.Fatal("fired while ready and waiting for the match")
	}

	a.Handle(&wire.MatchStart{MatchID: "m1", Duration: 120}, coordDest)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 1 {
		t.Fatalf("emitted %d frames mid-match, want 1", emit.count())
	}

	// Back to debug after the match: ready withdrawn, fire allowed.
	clock.Advance(3 * time.Second)
	a.Handle(&wire.MatchEnd{}, coordDest)
	a.Handle(&wire.ReadyStatus{TeamID: 5, Ready: false}, opAddr)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 2 {
		t.Fatalf("emitted %d frames in debug, want 2", emit.count())
	}
}

func TestNoStandbyWhileDisabled(t *testing.T) {
	a, clock, _, act, _ := newTestAgent(t)

	a.Handle(control(wire.Control{}), opAddr)
	a.Handle(&wire.RobotDisabled{
		DisabledByID:  9,
		DisabledUntil: unix(clock.Now().Add(20 * time.Second)),
	}, coordDest)

	clock.Advance(11 * time.Second)
	a.tickApply()
	if on, _ := act.lastStandby(); on {
		t.Fatal("entered standby while hit-disabled")
	}
}

func TestFireCooldown(t *testing.T) {
	a, clock, send, _, emit := newTestAgent(t)

	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 1 {
		t.Fatalf("emitted %d frames, want 1", emit.count())
	}
	first := send.ofType(wire.TypeStatus)[0].msg.(*wire.Status)
	if !first.FireSuccess {
		t.Fatal("first shot not reported as fired")
	}

	// Inside the cooldown nothing fires.
	send.reset()
	clock.Advance(500 * time.Millisecond)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 1 {
		t.Fatal("fired inside cooldown")
	}
	if st := send.ofType(wire.TypeStatus)[0].msg.(*wire.Status); st.FireSuccess {
		t.Fatal("cooldown shot reported as fired")
	}

	clock.Advance(2 * time.Second)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 2 {
		t.Fatal("did not fire after cooldown")
	}
}

func TestHitDisablesAndReports(t *testing.T) {
	a, clock, send, act, emit := newTestAgent(t)

	feedFrame(a, 9)

	act.mu.Lock()
	stops := act.stops
	act.mu.Unlock()
	if stops == 0 {
		t.Fatal("hit did not stop motion")
	}

	reports := send.ofType(wire.TypeHitReport)
	if len(reports) != 1 || reports[0].to != coordDest {
		t.Fatalf("hit reports = %v", reports)
	}
	r := reports[0].msg.(*wire.HitReport)
	if r.Data.AttackingTeam != 9 || r.Data.DefendingTeam != 5 {
		t.Fatalf("report = %+v", r.Data)
	}

	// Disabled robot cannot fire.
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 0 {
		t.Fatal("fired while disabled")
	}

	// Status reflects the robot's own authority on hit state.
	st := send.ofType(wire.TypeStatus)[0].msg.(*wire.Status)
	if !st.IRStatus.IsHit || st.IRStatus.HitByTeam != 9 {
		t.Fatalf("status = %+v", st.IRStatus)
	}
	if st.IRStatus.TimeRemaining <= 0 || st.IRStatus.TimeRemaining > 10 {
		t.Fatalf("time_remaining = %f", st.IRStatus.TimeRemaining)
	}

	// A second tag inside the window changes nothing.
	send.reset()
	feedFrame(a, 3)
	if len(send.ofType(wire.TypeHitReport)) != 0 {
		t.Fatal("re-hit while disabled produced a report")
	}

	// Window expiry restores fire.
	clock.Advance(11 * time.Second)
	a.Handle(control(wire.Control{Fire: true}), opAddr)
	if emit.count() != 1 {
		t.Fatal("cannot fire after disable expiry")
	}
}

func TestOwnFramesIgnored(t *testing.T) {
	a, _, send, _, _ := newTestAgent(t)

	feedFrame(a, 5) // own team id
	if len(send.ofType(wire.TypeHitReport)) != 0 {
		t.Fatal("reported a hit from our own emitter")
	}
}

func TestHitReportRetransmitUntilAck(t *testing.T) {
	a, clock, send, _, _ := newTestAgent(t)

	feedFrame(a, 9)
	send.reset()

	// No retransmit before the interval.
	clock.Advance(200 * time.Millisecond)
	a.tickApply()
	if n := len(send.ofType(wire.TypeHitReport)); n != 0 {
		t.Fatalf("retransmitted early: %d", n)
	}

	clock.Advance(400 * time.Millisecond)
	a.tickApply()
	if n := len(send.ofType(wire.TypeHitReport)); n != 1 {
		t.Fatalf("got %d retransmits, want 1", n)
	}

	// The coordinator's ROBOT_DISABLED acknowledges the report.
	a.Handle(&wire.RobotDisabled{DisabledByID: 9, Duration: 10,
		DisabledUntil: unix(clock.Now().Add(9 * time.Second))}, coordDest)
	send.reset()
	clock.Advance(time.Second)
	a.tickApply()
	if n := len(send.ofType(wire.TypeHitReport)); n != 0 {
		t.Fatal("retransmitted after ack")
	}
}

func TestHitReportGivesUpAfterWindow(t *testing.T) {
	a, clock, send, _, _ := newTestAgent(t)

	feedFrame(a, 9)
	send.reset()

	for i := 0; i < 12; i++ {
		clock.Advance(600 * time.Millisecond)
		a.tickApply()
	}
	n := len(send.ofType(wire.TypeHitReport))
	if n == 0 {
		t.Fatal("never retransmitted")
	}
	if n > 9 {
		t.Fatalf("%d retransmits, want them bounded by the report window", n)
	}
}

func TestMatchStateInStatus(t *testing.T) {
	a, _, send, _, _ := newTestAgent(t)

	a.Handle(&wire.MatchStart{MatchID: "m1", Duration: 120}, coordDest)
	a.Handle(&wire.ScoreUpdate{Points: 30, Kills: 3, Deaths: 1}, coordDest)
	a.Handle(control(wire.Control{}), opAddr)

	st := send.ofType(wire.TypeStatus)[0].msg.(*wire.Status)
	if !st.GameStatus.GameActive || st.GameStatus.Points != 30 || st.GameStatus.Kills != 3 {
		t.Fatalf("game status = %+v", st.GameStatus)
	}

	send.reset()
	a.Handle(&wire.MatchEnd{}, coordDest)
	a.Handle(control(wire.Control{}), opAddr)
	if st := send.ofType(wire.TypeStatus)[0].msg.(*wire.Status); st.GameStatus.GameActive {
		t.Fatal("game still active after GAME_END")
	}
}

func TestDiscoveryRegistersAsRobot(t *testing.T) {
	a, _, send, _, _ := newTestAgent(t)

	a.Handle(&wire.DiscoveryBeacon{CoordIP: "10.0.0.200", CoordPort: 6000},
		netip.MustParseAddrPort("10.0.0.200:6000"))

	regs := send.ofType(wire.TypeRegister)
	if len(regs) != 1 {
		t.Fatalf("got %d REGISTER, want 1", len(regs))
	}
	msg := regs[0].msg.(*wire.Register)
	if msg.Role != "robot" || msg.TeamID != 5 || msg.ListenPort != 5005 {
		t.Fatalf("register = %+v", msg)
	}
}
