package operator

import (
	"log/slog"

	"tagarena/wire"
)

// sendControl relays one gated control tick to the robot. EStop always
// passes through; motion and fire only when the mode allows input and
// the robot is not disabled. Fire is consumed from the edge latch and
// rate-limited to the weapon cooldown; a press while gated is dropped,
// not queued.
func (p *Proxy) sendControl() {
	now := p.clock.Now()

	p.mu.Lock()
	in := p.input
	allowed := p.mode.InputAllowed() && !p.disabled.Active(now)
	fire := false
	if allowed && p.fireLatch && now.Sub(p.lastFire) >= p.cfg.WeaponCooldown() {
		fire = true
		p.lastFire = now
	}
	p.fireLatch = false
	p.mu.Unlock()

	msg := &wire.Control{
		EStop:  in.EStop,
		Speed:  clamp(in.Speed, 0, 1),
		Servo1: in.Servo1,
		Servo2: in.Servo2,
		GPIO:   in.GPIO,
		Lights: in.Lights,
	}
	if allowed {
		msg.VX = clamp(in.VX, -1, 1) * msg.Speed
		msg.VY = clamp(in.VY, -1, 1) * msg.Speed
		msg.VR = clamp(in.VR, -1, 1) * msg.Speed
		msg.Fire = fire
	}

	if err := p.send.Send(msg, p.robotAddr); err != nil {
		slog.Debug("control send", "err", err)
	}
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
