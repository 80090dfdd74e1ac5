package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tagarena"
	"tagarena/events"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func sampleMatch() tagarena.Match {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return tagarena.Match{
		ID:           "m20260314-100000-01",
		Phase:        tagarena.PhaseEnded,
		Duration:     2 * time.Minute,
		StartTime:    start,
		EndTime:      start.Add(2 * time.Minute),
		Participants: []tagarena.TeamID{1, 2},
		Scores: map[tagarena.TeamID]tagarena.Score{
			1: {Points: 30, Kills: 3, Deaths: 1},
			2: {Points: 10, Kills: 1, Deaths: 3},
		},
		HitLog: []tagarena.Hit{
			{Sequence: 1, T: 12 * time.Second, Attacker: 1, Defender: 2, Points: 10, Kind: tagarena.HitIR},
			{Sequence: 2, T: 80 * time.Second, Attacker: 1, Points: 20, Kind: tagarena.HitAward, Category: tagarena.AwardSteal},
		},
	}
}

func TestSaveAndReload(t *testing.T) {
	a := openTestArchive(t)
	m := sampleMatch()

	if err := a.SaveMatch(m, "time expired"); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	got, reason, err := a.Match(m.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if reason != "time expired" {
		t.Fatalf("reason = %q", reason)
	}
	if len(got.HitLog) != 2 {
		t.Fatalf("hit log has %d entries, want 2", len(got.HitLog))
	}
	if got.HitLog[1].Kind != tagarena.HitAward || got.HitLog[1].Category != tagarena.AwardSteal {
		t.Fatalf("award row = %+v", got.HitLog[1])
	}
	if got.Scores[1].Points != 30 || got.Scores[2].Deaths != 3 {
		t.Fatalf("scores = %+v", got.Scores)
	}
	if !got.EndTime.Equal(m.EndTime) {
		t.Fatalf("end time = %v, want %v", got.EndTime, m.EndTime)
	}
}

func TestResaveReplacesWithoutLosingReason(t *testing.T) {
	a := openTestArchive(t)
	m := sampleMatch()

	if err := a.SaveMatch(m, "time expired"); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	// A late award extends the log; the re-save carries no reason but
	// must not clear the recorded one.
	m.HitLog = append(m.HitLog, tagarena.Hit{
		Sequence: 3, T: 200 * time.Second, Attacker: 2, Points: 30,
		Kind: tagarena.HitAward, Category: tagarena.AwardPossession,
	})
	if err := a.SaveMatch(m, ""); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, reason, err := a.Match(m.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got.HitLog) != 3 {
		t.Fatalf("hit log has %d entries after re-save, want 3", len(got.HitLog))
	}
	if reason != "time expired" {
		t.Fatalf("reason after re-save = %q", reason)
	}
}

func TestMatchesListing(t *testing.T) {
	a := openTestArchive(t)

	m1 := sampleMatch()
	m2 := sampleMatch()
	m2.ID = "m20260314-110000-02"
	m2.StartTime = m1.StartTime.Add(time.Hour)
	m2.EndTime = m2.StartTime.Add(2 * time.Minute)

	if err := a.SaveMatch(m1, "time expired"); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	if err := a.SaveMatch(m2, "referee"); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	list, err := a.Matches()
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d matches, want 2", len(list))
	}
	if list[0].ID != m2.ID {
		t.Fatalf("listing order: first = %s, want newest %s", list[0].ID, m2.ID)
	}
	if list[1].Hits != 2 {
		t.Fatalf("hit count = %d, want 2", list[1].Hits)
	}
}

func TestMatchNotFound(t *testing.T) {
	a := openTestArchive(t)
	if _, _, err := a.Match("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

type staticSource struct {
	m tagarena.Match
}

func (s staticSource) MatchView() tagarena.Match { return s.m }

func TestWriterArchivesOnEnd(t *testing.T) {
	a := openTestArchive(t)
	m := sampleMatch()
	w := NewWriter(a, staticSource{m: m})

	broker := events.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evs := broker.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, evs)
	}()

	broker.Publish(events.Event{
		Kind: events.KindPhase, Phase: tagarena.PhaseEnded,
		Match: m.ID, Note: "time expired",
	})

	deadline := time.After(2 * time.Second)
	for {
		list, err := a.Matches()
		if err != nil {
			t.Fatalf("Matches: %v", err)
		}
		if len(list) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("writer never archived the match")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	cancel()
	<-done
}
