package tagarena

import "testing"

func TestCanTransition(t *testing.T) {
	phases := []MatchPhase{PhaseIdle, PhaseArmed, PhaseRunning, PhaseEnded}
	legal := map[[2]MatchPhase]bool{
		{PhaseIdle, PhaseArmed}:    true,
		{PhaseArmed, PhaseRunning}: true,
		{PhaseArmed, PhaseIdle}:    true,
		{PhaseRunning, PhaseEnded}: true,
		{PhaseEnded, PhaseArmed}:   true,
	}

	for _, from := range phases {
		for _, to := range phases {
			want := legal[[2]MatchPhase{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionAppliesLegalChange(t *testing.T) {
	p := PhaseIdle
	p = p.Transition(PhaseArmed)
	p = p.Transition(PhaseRunning)
	p = p.Transition(PhaseEnded)
	if p != PhaseEnded {
		t.Fatalf("phase = %s", p)
	}
	// A finished match can be re-armed for the next round.
	if p.Transition(PhaseArmed) != PhaseArmed {
		t.Fatal("rearm failed")
	}
}

func TestMatchParticipant(t *testing.T) {
	m := Match{Participants: []TeamID{1, 4}}
	if !m.Participant(1) || !m.Participant(4) {
		t.Fatal("listed teams must be participants")
	}
	if m.Participant(2) {
		t.Fatal("unlisted team must not be a participant")
	}
}

func TestHitKindString(t *testing.T) {
	if HitIR.String() != "hit" || HitAward.String() != "award" {
		t.Fatalf("kind strings: %q %q", HitIR.String(), HitAward.String())
	}
}
