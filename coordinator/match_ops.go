package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tagarena"
	"tagarena/events"
	"tagarena/wire"
)

var (
	// ErrPhase rejects an operation not valid in the current phase.
	ErrPhase = errors.New("invalid match phase")
	// ErrUnknownTeam rejects an operation naming an unregistered team.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrUnknownAward rejects an award category with no configured value.
	ErrUnknownAward = errors.New("unknown award category")
	// ErrGraceExpired rejects an award after the post-match window.
	ErrGraceExpired = errors.New("award grace period expired")
)

// Arm selects participants for the next match. Legal from Idle and from
// Ended (rearming keeps the previous match available until then).
func (c *Coordinator) Arm(rawIDs []int) error {
	if len(rawIDs) < 2 {
		return fmt.Errorf("need at least 2 participants, got %d", len(rawIDs))
	}

	ids := make([]tagarena.TeamID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := tagarena.ParseTeamID(raw)
		if err != nil {
			return err
		}
		for _, seen := range ids {
			if seen == id {
				return fmt.Errorf("duplicate participant %d", id)
			}
		}
		ids = append(ids, id)
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.match.Phase.CanTransition(tagarena.PhaseArmed) {
		return fmt.Errorf("%w: cannot arm from %s", ErrPhase, c.match.Phase)
	}
	for _, id := range ids {
		if _, ok := c.roster[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownTeam, id)
		}
	}

	c.matchSeq++
	scores := make(map[tagarena.TeamID]tagarena.Score, len(ids))
	for _, id := range ids {
		scores[id] = tagarena.Score{}
	}
	c.match = tagarena.Match{
		ID:           fmt.Sprintf("m%s-%02d", now.Format("20060102-150405"), c.matchSeq),
		Phase:        c.match.Phase.Transition(tagarena.PhaseArmed),
		Participants: ids,
		Scores:       scores,
	}
	c.disabled = make(map[tagarena.TeamID]tagarena.DisabledState)
	c.dedup = make(map[dedupKey]time.Time)

	c.publishLocked(events.Event{Kind: events.KindPhase, At: now, Match: c.match.ID,
		Phase: tagarena.PhaseArmed})
	slog.Info("match armed", "match", c.match.ID, "participants", ids)
	return nil
}

// ReadyCheckAll asks every registered operator to re-declare readiness.
func (c *Coordinator) ReadyCheckAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.roster {
		if t.OperatorAddr.IsValid() {
			if err := c.send.Send(&wire.ReadyCheck{}, t.OperatorAddr); err != nil {
				slog.Warn("ready check", "team", t.ID, "err", err)
			}
		}
	}
}

// ForceReady overrides one operator's readiness.
func (c *Coordinator) ForceReady(rawID int, reason string) error {
	id, err := tagarena.ParseTeamID(rawID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.roster[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTeam, id)
	}
	c.forceReadyLocked(t, reason)
	return nil
}

func (c *Coordinator) forceReadyLocked(t *tagarena.Team, reason string) {
	t.Ready = true
	if t.OperatorAddr.IsValid() {
		msg := &wire.ForceReady{TeamID: int(t.ID), Reason: reason}
		if err := c.send.Send(msg, t.OperatorAddr); err != nil {
			slog.Warn("force ready", "team", t.ID, "err", err)
		}
		c.enqueueCriticalLocked(msg, t.OperatorAddr)
	}
	slog.Info("forced ready", "team", t.ID, "reason", reason)
}

// StartMatch begins the armed match. Unready participants are forced
// ready first so nobody starts with frozen controls. A zero duration
// ends the match on the first timer tick.
func (c *Coordinator) StartMatch(duration time.Duration) error {
	if duration < 0 {
		return fmt.Errorf("negative duration %s", duration)
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.match.Phase.CanTransition(tagarena.PhaseRunning) {
		return fmt.Errorf("%w: cannot start from %s", ErrPhase, c.match.Phase)
	}

	for _, id := range c.match.Participants {
		if t, ok := c.roster[id]; ok && !t.Ready {
			c.forceReadyLocked(t, "match starting")
		}
	}

	c.match.Phase = c.match.Phase.Transition(tagarena.PhaseRunning)
	c.match.Duration = duration
	c.match.StartTime = now
	c.match.EndTime = now.Add(duration)

	start := &wire.MatchStart{
		MatchID:      c.match.ID,
		Duration:     int(duration / time.Second),
		Participants: participantInts(c.match.Participants),
	}
	for _, id := range c.match.Participants {
		if t, ok := c.roster[id]; ok {
			c.sendTeamLocked(t, start, true)
		}
	}

	c.publishLocked(events.Event{Kind: events.KindPhase, At: now, Match: c.match.ID,
		Phase: tagarena.PhaseRunning})
	slog.Info("match started", "match", c.match.ID, "duration", duration)
	return nil
}

// EndMatch ends the running match immediately.
func (c *Coordinator) EndMatch() error {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.match.Phase.CanTransition(tagarena.PhaseEnded) {
		return fmt.Errorf("%w: cannot end from %s", ErrPhase, c.match.Phase)
	}
	c.endLocked(now, "referee")
	return nil
}

// endLocked transitions Running to Ended, notifies participants, and
// lifts every open disable so no robot stays frozen between matches.
func (c *Coordinator) endLocked(now time.Time, reason string) {
	c.match.Phase = c.match.Phase.Transition(tagarena.PhaseEnded)
	c.match.EndTime = now

	end := &wire.MatchEnd{}
	for _, id := range c.match.Participants {
		if t, ok := c.roster[id]; ok {
			c.sendTeamLocked(t, end, true)
		}
	}
	for id := range c.disabled {
		delete(c.disabled, id)
		if t, ok := c.roster[id]; ok {
			c.sendTeamLocked(t, &wire.RobotEnabled{Timestamp: unix(now)}, true)
		}
	}
	// Final absolute totals, in case a mid-match update was lost.
	for _, id := range c.match.Participants {
		c.pushScoreLocked(id)
	}

	c.publishLocked(events.Event{Kind: events.KindPhase, At: now, Match: c.match.ID,
		Phase: tagarena.PhaseEnded, Note: reason})
	slog.Info("match ended", "match", c.match.ID, "reason", reason)
}

// Cancel returns an armed match to Idle without starting it.
func (c *Coordinator) Cancel() error {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.match.Phase != tagarena.PhaseArmed {
		return fmt.Errorf("%w: cannot cancel from %s", ErrPhase, c.match.Phase)
	}
	id := c.match.ID
	c.match = tagarena.Match{Phase: c.match.Phase.Transition(tagarena.PhaseIdle)}

	c.publishLocked(events.Event{Kind: events.KindPhase, At: now, Match: id,
		Phase: tagarena.PhaseIdle, Note: "cancelled"})
	slog.Info("match cancelled", "match", id)
	return nil
}

// Award grants a referee bonus to a participant. Legal while the match
// runs and for the grace window after it ends, so judges can settle
// disputed possession calls.
func (c *Coordinator) Award(rawID int, category string) error {
	id, err := tagarena.ParseTeamID(rawID)
	if err != nil {
		return err
	}
	points, ok := c.cfg.Points.Awards[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAward, category)
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.match.Phase {
	case tagarena.PhaseRunning:
	case tagarena.PhaseEnded:
		if now.After(c.match.EndTime.Add(c.cfg.AwardGrace())) {
			return ErrGraceExpired
		}
	default:
		return fmt.Errorf("%w: no match to award in %s", ErrPhase, c.match.Phase)
	}
	if !c.match.Participant(id) {
		return fmt.Errorf("%w: %d not a participant", ErrUnknownTeam, id)
	}

	hit := tagarena.Hit{
		Sequence: len(c.match.HitLog) + 1,
		T:        now.Sub(c.match.StartTime),
		Attacker: id,
		Points:   points,
		Kind:     tagarena.HitAward,
		Category: tagarena.AwardCategory(category),
	}
	c.match.HitLog = append(c.match.HitLog, hit)

	s := c.match.Scores[id]
	s.Points += points
	c.match.Scores[id] = s
	c.pushScoreLocked(id)

	c.publishLocked(events.Event{Kind: events.KindAward, At: now, Team: id,
		Match: c.match.ID, Hit: &hit})
	slog.Info("award granted", "team", id, "category", category, "points", points)
	return nil
}

// AwardsAllowed reports whether an award would currently be accepted:
// while the match runs and through the grace window after it ends.
func (c *Coordinator) AwardsAllowed() bool {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.match.Phase {
	case tagarena.PhaseRunning:
		return true
	case tagarena.PhaseEnded:
		return !now.After(c.match.EndTime.Add(c.cfg.AwardGrace()))
	default:
		return false
	}
}

func participantInts(ids []tagarena.TeamID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
