package robot

import (
	"net/netip"

	"tagarena/robot/ir"
	"tagarena/wire"
)

// Actuator is the hardware below the agent. Implementations must
// tolerate repeated identical calls; the agent re-applies outputs on
// every tick.
type Actuator interface {
	// Drive sets chassis velocities, each in [-1,1].
	Drive(vx, vy, vr float64)
	// Stop halts all motion immediately.
	Stop()
	SetServos(s1, s2 float64)
	SetGPIO(pins [4]bool)
	SetLights(on bool)
	// Standby powers the drivetrain down or back up.
	Standby(on bool)
}

// Emitter plays an IR frame over the carrier.
type Emitter interface {
	Transmit(frame ir.Frame) error
}

// Sender transmits one encoded message. Satisfied by
// transport.Endpoint.
type Sender interface {
	Send(msg wire.Message, to netip.AddrPort) error
}
