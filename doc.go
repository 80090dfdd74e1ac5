// Package tagarena holds the domain types shared by the tournament
// coordinator, the operator proxy, and the robot agent.
//
// Component lifecycles live in their packages: coordinator owns the
// authoritative match state, operator gates human input, robot bridges
// UDP commands to actuators. Everything here is plain data plus the
// small ports (Clock) the components share.
package tagarena
