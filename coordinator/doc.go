// Package coordinator implements the arena-side tournament authority:
// the team roster, the single match lifecycle, authoritative scoring,
// and the periodic beacons that keep operators and robots converged on
// coordinator state.
//
// One Coordinator owns all mutable state behind a single mutex. The
// UDP receive loop calls Handle; the referee HTTP server calls the
// exported match operations; an internal loop drives disable expiry,
// the match timer, heartbeats, discovery, and critical-update retry.
package coordinator
