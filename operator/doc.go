// Package operator implements the driver-station proxy that sits
// between a team's input device and their robot. It learns its
// identity from the robot over the config handshake, registers with
// the coordinator, gates driver input by match state, and relays
// control ticks to the robot.
//
// The robot is the authority on hit state. The proxy mirrors whatever
// the robot's STATUS replies say, even when that disagrees with what
// the coordinator told it.
package operator
