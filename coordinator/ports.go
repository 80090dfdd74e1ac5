package coordinator

import (
	"net/netip"

	"tagarena/wire"
)

// Sender transmits one encoded message. Satisfied by
// transport.Endpoint; tests substitute an in-memory fake.
type Sender interface {
	Send(msg wire.Message, to netip.AddrPort) error
}
