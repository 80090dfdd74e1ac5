package tagarena

// RosterHealth is a snapshot of team liveness across the arena.
type RosterHealth struct {
	Total   int
	Online  int
	Stale   int
	Offline int
}

// AllReachable returns true when every registered team has been heard
// from recently enough to count as at least Stale.
func (h RosterHealth) AllReachable() bool {
	return h.Offline == 0
}
