package coordinator

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tagarena"
	"tagarena/config"
	"tagarena/events"
	"tagarena/internal/check"
	"tagarena/wire"
)

// expiryTick bounds how late a disable can be lifted and how late a
// timed match can end.
const expiryTick = 100 * time.Millisecond

// pulseTick drives coordinator heartbeats and critical-update retry.
const pulseTick = 1 * time.Second

// hitRetransmitWindow mirrors the defender's retransmission schedule:
// a lost ROBOT_DISABLED means the identical report keeps arriving every
// 500 ms for up to 5 s, and every one of them is the same physical hit.
const hitRetransmitWindow = 6 * time.Second

type dedupKey struct {
	attacker tagarena.TeamID
	defender tagarena.TeamID
	tRobot   float64
}

// Coordinator is the single tournament authority for one arena.
type Coordinator struct {
	cfg    *config.Config
	clock  tagarena.Clock
	send   Sender
	broker *events.Broker
	tracer trace.Tracer

	mu       sync.Mutex
	roster   map[tagarena.TeamID]*tagarena.Team
	match    tagarena.Match
	disabled map[tagarena.TeamID]tagarena.DisabledState
	dedup    map[dedupKey]time.Time
	pending  []pendingSend
	matchSeq int

	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts a Coordinator, mainly for tests.
type Option func(*Coordinator)

// WithClock substitutes the time source.
func WithClock(clock tagarena.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithBroker attaches an event broker for archive writers and CLI
// streams. Without one, events are dropped.
func WithBroker(b *events.Broker) Option {
	return func(c *Coordinator) { c.broker = b }
}

// WithTracer overrides the otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// New builds a Coordinator. send must not be nil.
func New(cfg *config.Config, send Sender, opts ...Option) *Coordinator {
	check.Assert(cfg != nil, "coordinator.New: cfg must not be nil")
	check.Assert(send != nil, "coordinator.New: send must not be nil")

	c := &Coordinator{
		cfg:      cfg,
		clock:    tagarena.RealClock{},
		send:     send,
		broker:   events.NewBroker(),
		tracer:   otel.Tracer("tagarena/coordinator"),
		roster:   make(map[tagarena.TeamID]*tagarena.Team),
		match:    tagarena.Match{Phase: tagarena.PhaseIdle},
		disabled: make(map[tagarena.TeamID]tagarena.DisabledState),
		dedup:    make(map[dedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the internal timer loop.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop cancels the timer loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	expiry := time.NewTicker(expiryTick)
	defer expiry.Stop()
	pulse := time.NewTicker(pulseTick)
	defer pulse.Stop()
	discovery := time.NewTicker(c.cfg.DiscoveryInterval())
	defer discovery.Stop()

	// Announce immediately so restarted parties re-find us without
	// waiting a full discovery interval.
	c.sendDiscovery()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			c.tickExpiry()
		case <-pulse.C:
			c.tickPulse()
		case <-discovery.C:
			c.sendDiscovery()
		}
	}
}

// tickExpiry lifts expired disables, ends a timed-out match, and prunes
// the dedup index.
func (c *Coordinator) tickExpiry() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, d := range c.disabled {
		if d.Active(now) {
			continue
		}
		delete(c.disabled, id)
		if t, ok := c.roster[id]; ok {
			c.sendTeamLocked(t, &wire.RobotEnabled{Timestamp: unix(now)}, true)
		}
		c.publishLocked(events.Event{Kind: events.KindEnable, At: now, Team: id, Match: c.match.ID})
		slog.Info("robot enabled", "team", id)
	}

	if c.match.Phase == tagarena.PhaseRunning && !c.match.EndTime.After(now) {
		c.endLocked(now, "time expired")
	}

	cutoff := now.Add(-2 * c.dedupRetention())
	for k, seen := range c.dedup {
		if seen.Before(cutoff) {
			delete(c.dedup, k)
		}
	}
}

// dedupRetention is how long an accepted triple keeps suppressing
// duplicates: the configured window for near-simultaneous copies, or
// the full retransmission schedule if that is longer.
func (c *Coordinator) dedupRetention() time.Duration {
	if w := c.cfg.DedupWindow(); w > hitRetransmitWindow {
		return w
	}
	return hitRetransmitWindow
}

// tickPulse sends coordinator heartbeats and retries pending critical
// updates.
func (c *Coordinator) tickPulse() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	hb := &wire.Heartbeat{
		GameActive: c.match.Phase == tagarena.PhaseRunning,
		Timestamp:  unix(now),
	}
	for _, t := range c.roster {
		c.sendTeamLocked(t, hb, false)
	}
	c.retryPendingLocked(now)
}

// sendDiscovery beacons coordinator location to the subnet broadcast
// address, every configured probe target, and every known endpoint.
func (c *Coordinator) sendDiscovery() {
	now := c.clock.Now()
	beacon := &wire.DiscoveryBeacon{
		CoordIP:   c.cfg.Network.CoordinatorIP,
		CoordPort: c.cfg.Network.CoordinatorPort,
		Timestamp: unix(now),
	}

	bcast := netip.AddrPortFrom(netip.AddrFrom4([4]byte{255, 255, 255, 255}),
		uint16(c.cfg.Network.RobotListenPort))
	if err := c.send.Send(beacon, bcast); err != nil {
		slog.Debug("discovery broadcast", "err", err)
	}

	for _, raw := range c.cfg.Network.ProbeList {
		to, err := netip.ParseAddrPort(raw)
		if err != nil {
			slog.Warn("bad probe target", "target", raw, "err", err)
			continue
		}
		if err := c.send.Send(beacon, to); err != nil {
			slog.Debug("discovery probe", "to", to, "err", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.roster {
		c.sendTeamLocked(t, beacon, false)
	}
}

// sendTeamLocked transmits to both of a team's registered endpoints.
// critical entries are also queued for retry. Callers hold c.mu.
func (c *Coordinator) sendTeamLocked(t *tagarena.Team, msg wire.Message, critical bool) {
	for _, to := range []netip.AddrPort{t.OperatorAddr, t.RobotAddr} {
		if !to.IsValid() {
			continue
		}
		if err := c.send.Send(msg, to); err != nil {
			slog.Warn("send failed", "type", msg.WireType(), "team", t.ID, "to", to, "err", err)
		}
		if critical {
			c.enqueueCriticalLocked(msg, to)
		}
	}
}

func (c *Coordinator) publishLocked(ev events.Event) {
	if c.broker != nil {
		c.broker.Publish(ev)
	}
}

// Events exposes the broker for archive writers and CLI streams.
func (c *Coordinator) Events() *events.Broker { return c.broker }

// unix converts to the protocol's float seconds representation.
func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
