package testkit

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"tagarena"
	"tagarena/config"
	"tagarena/coordinator"
	"tagarena/operator"
	"tagarena/robot"
	"tagarena/robot/ir"
	"tagarena/wire"
)

type nullActuator struct{}

func (nullActuator) Drive(vx, vy, vr float64) {}
func (nullActuator) Stop()                    {}
func (nullActuator) SetServos(s1, s2 float64) {}
func (nullActuator) SetGPIO(pins [4]bool)     {}
func (nullActuator) SetLights(on bool)        {}
func (nullActuator) Standby(on bool)          {}

type nullEmitter struct{}

func (nullEmitter) Transmit(frame ir.Frame) error { return nil }

const coordIP = "10.0.0.100"

// arena is a whole in-memory deployment: one coordinator plus an
// operator and a robot per team, joined by a Net.
type arena struct {
	clock *Clock
	net   *Net
	coord *coordinator.Coordinator
	ops   map[int]*operator.Proxy
	bots  map[int]*robot.Agent
}

func buildArena(t *testing.T, net *Net, teamIDs ...int) *arena {
	t.Helper()

	a := &arena{
		clock: NewClock(),
		net:   net,
		ops:   make(map[int]*operator.Proxy),
		bots:  make(map[int]*robot.Agent),
	}

	coordAddr := netip.AddrPortFrom(netip.MustParseAddr(coordIP), 6000)
	a.coord = coordinator.New(config.Default(), a.net.Endpoint(coordAddr),
		coordinator.WithClock(a.clock))
	a.net.Attach(coordAddr, a.coord.Handle)

	beacon := &wire.DiscoveryBeacon{CoordIP: coordIP, CoordPort: 6000}

	for _, id := range teamIDs {
		robotAddr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 1, byte(id)}), 5005)
		opAddr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, byte(id)}), uint16(6100+id))

		botCfg := config.Default()
		botCfg.Team = config.Team{TeamID: id, TeamName: "team", RobotName: "bot"}
		botCfg.Network.CoordinatorIP = coordIP
		bot := robot.New(botCfg, a.net.Endpoint(robotAddr),
			nullActuator{}, nullEmitter{}, robot.WithClock(a.clock))
		a.net.Attach(robotAddr, bot.Handle)
		a.bots[id] = bot

		opCfg := config.Default()
		opCfg.Network.CoordinatorIP = coordIP
		op := operator.New(opCfg, a.net.Endpoint(opAddr), robotAddr,
			operator.WithClock(a.clock), operator.WithListenPort(6100+id))
		a.net.Attach(opAddr, op.Handle)
		a.ops[id] = op

		// Identity flows robot -> operator, then both sides answer the
		// coordinator's discovery beacon with registrations.
		if err := op.Handshake(context.Background()); err != nil {
			t.Fatalf("handshake team %d: %v", id, err)
		}
		bot.Handle(beacon, coordAddr)
		op.Handle(beacon, coordAddr)
	}
	return a
}

// tag plays team attacker's IR frame into the defender robot's receiver.
func (a *arena) tag(t *testing.T, attacker, defender int) {
	t.Helper()
	bot := a.bots[defender]
	timing := ir.TimingFromConfig(config.Default().IR)
	frame := ir.Encode(timing, tagarena.TeamID(attacker))

	gapBefore := 200 * time.Millisecond
	for i := 0; i < len(frame); i += 2 {
		bot.FeedIR(frame[i], gapBefore)
		if i+1 < len(frame) {
			gapBefore = frame[i+1]
		}
	}
}

func (a *arena) teamStatus(t *testing.T, id int) coordinator.TeamStatus {
	t.Helper()
	for _, ts := range a.coord.Teams() {
		if int(ts.Team.ID) == id {
			return ts
		}
	}
	t.Fatalf("team %d not in roster", id)
	return coordinator.TeamStatus{}
}

func TestFullMatchFlow(t *testing.T) {
	a := buildArena(t, NewNet(), 1, 2)

	for _, id := range []int{1, 2} {
		ts := a.teamStatus(t, id)
		if !ts.Team.OperatorAddr.IsValid() || !ts.Team.RobotAddr.IsValid() {
			t.Fatalf("team %d endpoints incomplete: %+v", id, ts.Team)
		}
	}

	if err := a.coord.Arm([]int{1, 2}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := a.coord.StartMatch(2 * time.Minute); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	for _, id := range []int{1, 2} {
		if st := a.ops[id].State(); st.Mode != operator.ModePlaying {
			t.Fatalf("operator %d mode = %s after start", id, st.Mode)
		}
	}

	// Team 2 tags team 1. The report travels robot 1 -> coordinator,
	// and the verdict fans out to both teams.
	a.tag(t, 2, 1)

	if ts := a.teamStatus(t, 2); ts.Score.Points != 10 || ts.Score.Kills != 1 {
		t.Fatalf("attacker score = %+v", ts.Score)
	}
	if ts := a.teamStatus(t, 1); ts.Score.Deaths != 1 || !ts.Disabled {
		t.Fatalf("defender status = %+v", ts)
	}

	st := a.ops[1].State()
	if !st.Disabled || st.DisabledBy != 2 {
		t.Fatalf("operator 1 overlay = %+v", st)
	}
	if st.Score.Deaths != 1 {
		t.Fatalf("operator 1 score = %+v", st.Score)
	}
	if st2 := a.ops[2].State(); st2.Score.Points != 10 {
		t.Fatalf("operator 2 score = %+v", st2.Score)
	}

	// The disable window lapses locally even before the coordinator's
	// enable message arrives.
	a.clock.Advance(11 * time.Second)
	if st := a.ops[1].State(); st.Disabled {
		t.Fatal("operator 1 still disabled after window")
	}

	if err := a.coord.EndMatch(); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}
	for _, id := range []int{1, 2} {
		if st := a.ops[id].State(); st.Mode != operator.ModeWaiting {
			t.Fatalf("operator %d mode = %s after end", id, st.Mode)
		}
	}
}

// Every datagram delivered twice: registration, reports, verdicts, and
// score pushes must all be idempotent for the arena to converge.
func TestFullMatchFlowUnderDuplication(t *testing.T) {
	net := NewNet()
	net.Chaos(7, 0, 1.0)
	a := buildArena(t, net, 1, 2)

	if err := a.coord.Arm([]int{1, 2}); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := a.coord.StartMatch(2 * time.Minute); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}

	a.tag(t, 2, 1)
	a.clock.Advance(11 * time.Second)
	a.tag(t, 1, 2)

	if ts := a.teamStatus(t, 2); ts.Score.Points != 10 || ts.Score.Kills != 1 || ts.Score.Deaths != 1 {
		t.Fatalf("team 2 score = %+v", ts.Score)
	}
	if ts := a.teamStatus(t, 1); ts.Score.Points != 10 || ts.Score.Kills != 1 || ts.Score.Deaths != 1 {
		t.Fatalf("team 1 score = %+v", ts.Score)
	}
	if st := a.ops[2].State(); st.Score.Points != 10 || st.Score.Deaths != 1 {
		t.Fatalf("operator 2 score = %+v", st.Score)
	}

	delivered, _ := a.net.Stats()
	if delivered == 0 {
		t.Fatal("nothing traveled the fabric")
	}
}
