// Package wire defines the JSON datagram protocol shared by the
// coordinator, operator proxy, and robot agent.
//
// Every datagram is one JSON object with a "type" field selecting the
// variant. Decode happens once at the UDP boundary; unknown types are
// reported as ErrUnknownType and dropped by the caller.
package wire
