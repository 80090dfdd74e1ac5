// Package testkit holds shared fakes for multi-component tests: a
// manual clock and an in-memory datagram network that can duplicate or
// drop deliveries deterministically.
package testkit

import (
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"tagarena/wire"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed instant so test output is reproducible.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Handler consumes one delivered message, same shape as the transport
// layer's handler.
type Handler func(msg wire.Message, from netip.AddrPort)

// Net is an in-memory datagram fabric. Every send round-trips through
// the wire codec, so type tags and field shapes are exercised for real.
// Delivery is synchronous and in send order unless chaos options say
// otherwise.
type Net struct {
	mu        sync.Mutex
	nodes     map[netip.AddrPort]Handler
	rng       *rand.Rand
	dropRate  float64
	dupRate   float64
	delivered int
	dropped   int
}

// NewNet builds a reliable fabric. Seed the chaos knobs afterwards with
// Chaos.
func NewNet() *Net {
	return &Net{nodes: make(map[netip.AddrPort]Handler)}
}

// Chaos arms probabilistic drop and duplication with a fixed seed.
func (n *Net) Chaos(seed int64, dropRate, dupRate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rng = rand.New(rand.NewSource(seed))
	n.dropRate = dropRate
	n.dupRate = dupRate
}

// Stats returns delivered and dropped datagram counts.
func (n *Net) Stats() (delivered, dropped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered, n.dropped
}

// Endpoint attaches a node at addr. The returned Endpoint satisfies the
// Sender interfaces of the coordinator, operator, and robot packages.
func (n *Net) Endpoint(addr netip.AddrPort) *Endpoint {
	return &Endpoint{net: n, addr: addr}
}

// Attach binds the handler for an endpoint's address. Handlers can be
// attached after endpoints are created, which breaks the construction
// cycle between components and their senders.
func (n *Net) Attach(addr netip.AddrPort, h Handler) {
	n.mu.Lock()
	n.nodes[addr] = h
	n.mu.Unlock()
}

// Endpoint is one node's sending side.
type Endpoint struct {
	net  *Net
	addr netip.AddrPort
}

func (e *Endpoint) Addr() netip.AddrPort { return e.addr }

// Send codecs the message and delivers it to the destination handler,
// applying drop and duplication chaos. Unknown destinations are
// silently dropped, like datagrams to a dead host.
func (e *Endpoint) Send(msg wire.Message, to netip.AddrPort) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	e.net.mu.Lock()
	h := e.net.nodes[to]
	copies := 1
	if e.net.rng != nil {
		if e.net.rng.Float64() < e.net.dropRate {
			copies = 0
		} else if e.net.rng.Float64() < e.net.dupRate {
			copies = 2
		}
	}
	if h == nil {
		copies = 0
	}
	if copies == 0 {
		e.net.dropped++
	} else {
		e.net.delivered += copies
	}
	e.net.mu.Unlock()

	for i := 0; i < copies; i++ {
		decoded, err := wire.Decode(data)
		if err != nil {
			return err
		}
		h(decoded, e.addr)
	}
	return nil
}
