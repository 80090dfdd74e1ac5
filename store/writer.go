package store

import (
	"context"
	"log/slog"

	"tagarena"
	"tagarena/events"
)

// MatchSource hands out the live match snapshot. Satisfied by the
// coordinator.
type MatchSource interface {
	MatchView() tagarena.Match
}

// Writer archives matches as they end, driven by the event stream.
type Writer struct {
	archive *Archive
	source  MatchSource
}

func NewWriter(archive *Archive, source MatchSource) *Writer {
	return &Writer{archive: archive, source: source}
}

// Run consumes events until ctx is cancelled. Ended phases trigger a
// save; late awards re-trigger it, overwriting the earlier snapshot.
func (w *Writer) Run(ctx context.Context, evs <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			switch {
			case ev.Kind == events.KindPhase && ev.Phase == tagarena.PhaseEnded:
				w.save(ev.Match, ev.Note)
			case ev.Kind == events.KindAward:
				w.save(ev.Match, "")
			}
		}
	}
}

func (w *Writer) save(matchID, reason string) {
	m := w.source.MatchView()
	if m.ID != matchID {
		// The coordinator already re-armed; the snapshot is gone.
		slog.Warn("match no longer current, skipping archive", "match", matchID)
		return
	}
	if reason == "" && m.Phase != tagarena.PhaseEnded {
		// Mid-match award; nothing to archive yet.
		return
	}
	if err := w.archive.SaveMatch(m, reason); err != nil {
		slog.Error("archive match", "match", matchID, "err", err)
		return
	}
	slog.Info("match archived", "match", matchID, "hits", len(m.HitLog))
}
