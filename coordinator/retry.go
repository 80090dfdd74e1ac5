package coordinator

import (
	"log/slog"
	"net/netip"
	"time"

	"tagarena/wire"
)

const (
	// retryInterval is how often an unexpired critical update is
	// retransmitted; retryWindow caps how long.
	retryInterval = 1 * time.Second
	retryWindow   = 5 * time.Second
)

// pendingSend is one critical update awaiting redelivery. There is no
// per-message ack on the wire; redelivery is idempotent because every
// critical payload carries absolute state.
type pendingSend struct {
	msg     wire.Message
	to      netip.AddrPort
	nextAt  time.Time
	expires time.Time
}

func (c *Coordinator) enqueueCriticalLocked(msg wire.Message, to netip.AddrPort) {
	now := c.clock.Now()
	c.pending = append(c.pending, pendingSend{
		msg:     msg,
		to:      to,
		nextAt:  now.Add(retryInterval),
		expires: now.Add(retryWindow),
	})
}

func (c *Coordinator) retryPendingLocked(now time.Time) {
	kept := c.pending[:0]
	for _, p := range c.pending {
		if !p.expires.After(now) {
			continue
		}
		if !p.nextAt.After(now) {
			if err := c.send.Send(p.msg, p.to); err != nil {
				slog.Debug("critical retry", "type", p.msg.WireType(), "to", p.to, "err", err)
			}
			p.nextAt = now.Add(retryInterval)
		}
		kept = append(kept, p)
	}
	c.pending = kept
}
