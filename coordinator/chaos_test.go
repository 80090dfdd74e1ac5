package coordinator

import (
	"math/rand"
	"net/netip"
	"testing"
	"time"
)

// Replays a long randomized hit sequence with duplicated deliveries and
// checks the score converges to exactly one scoring per unique hit.
func TestScoringConvergesUnderDuplication(t *testing.T) {
	c, clock, _ := newTestCoordinator(t)
	registerPair(t, c, 1)
	registerPair(t, c, 2)
	startRunning(t, c, 1, 2)

	rng := rand.New(rand.NewSource(42))
	perHit := c.cfg.Points.PerHit
	wantPoints := map[int]int{1: 0, 2: 0}
	wantDeaths := map[int]int{1: 0, 2: 0}

	for i := 0; i < 50; i++ {
		attacker, defender := 1, 2
		if rng.Intn(2) == 0 {
			attacker, defender = 2, 1
		}
		wantPoints[attacker] += perHit
		wantDeaths[defender]++

		from := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 1, byte(defender)}), 5005)
		hr := hitReport(attacker, defender, unix(clock.Now()))
		for n := 1 + rng.Intn(3); n > 0; n-- {
			c.Handle(hr, from)
		}

		// Let the disable window lapse before the next exchange so the
		// attacker-disabled drop never fires.
		clock.Advance(11 * time.Second)
		c.tickExpiry()
	}

	for id := 1; id <= 2; id++ {
		var found bool
		for _, ts := range c.Teams() {
			if int(ts.Team.ID) != id {
				continue
			}
			found = true
			if ts.Score.Points != wantPoints[id] {
				t.Errorf("team %d points = %d, want %d", id, ts.Score.Points, wantPoints[id])
			}
			if ts.Score.Deaths != wantDeaths[id] {
				t.Errorf("team %d deaths = %d, want %d", id, ts.Score.Deaths, wantDeaths[id])
			}
		}
		if !found {
			t.Fatalf("team %d missing from roster", id)
		}
	}

	m := c.MatchView()
	if got, want := len(m.HitLog), 50; got != want {
		t.Fatalf("hit log has %d entries, want %d", got, want)
	}
	for i, h := range m.HitLog {
		if h.Sequence != i+1 {
			t.Fatalf("hit %d has sequence %d", i, h.Sequence)
		}
	}
}
