package coordinator

import (
	"context"
	"log/slog"
	"net/netip"

	"go.opentelemetry.io/otel/attribute"

	"tagarena"
	"tagarena/events"
	"tagarena/wire"
)

// applyHit is the authoritative scoring path. The hit log is
// append-only; acceptance disables the defender and pushes absolute
// score totals so redelivered updates converge.
func (c *Coordinator) applyHit(m *wire.HitReport, from netip.AddrPort) {
	_, span := c.tracer.Start(context.Background(), "coordinator.hit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("hit.attacker", m.Data.AttackingTeam),
		attribute.Int("hit.defender", m.Data.DefendingTeam),
	)

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.match.Phase != tagarena.PhaseRunning {
		span.SetAttributes(attribute.String("hit.drop", "not_running"))
		return
	}

	attacker, err := tagarena.ParseTeamID(m.Data.AttackingTeam)
	if err != nil {
		span.SetAttributes(attribute.String("hit.drop", "bad_attacker"))
		return
	}
	defender, err := tagarena.ParseTeamID(m.Data.DefendingTeam)
	if err != nil {
		span.SetAttributes(attribute.String("hit.drop", "bad_defender"))
		return
	}
	if !c.match.Participant(attacker) || !c.match.Participant(defender) {
		span.SetAttributes(attribute.String("hit.drop", "not_participant"))
		return
	}
	if attacker == defender {
		span.SetAttributes(attribute.String("hit.drop", "self_hit"))
		return
	}
	if c.disabled[attacker].Active(now) {
		span.SetAttributes(attribute.String("hit.drop", "attacker_disabled"))
		return
	}

	defTeam := c.roster[defender]
	if defTeam != nil {
		touchContactLocked(defTeam, from, now)
	}

	// The defender's robot retransmits the identical report every 500 ms
	// until it sees ROBOT_DISABLED, so a duplicate triple is absorbed for
	// the whole retransmission schedule and acknowledged again without
	// rescoring.
	key := dedupKey{attacker: attacker, defender: defender, tRobot: m.Data.Timestamp}
	if seen, ok := c.dedup[key]; ok && now.Sub(seen) < c.dedupRetention() {
		span.SetAttributes(attribute.String("hit.drop", "duplicate"))
		if d := c.disabled[defender]; d.Active(now) && defTeam != nil {
			c.sendTeamLocked(defTeam, c.disabledMsgLocked(d), false)
		}
		return
	}
	c.dedup[key] = now

	hit := tagarena.Hit{
		Sequence: len(c.match.HitLog) + 1,
		T:        now.Sub(c.match.StartTime),
		Attacker: attacker,
		Defender: defender,
		Points:   c.cfg.Points.PerHit,
		Kind:     tagarena.HitIR,
	}
	c.match.HitLog = append(c.match.HitLog, hit)

	atkScore := c.match.Scores[attacker]
	atkScore.Points += hit.Points
	atkScore.Kills++
	c.match.Scores[attacker] = atkScore

	defScore := c.match.Scores[defender]
	defScore.Deaths++
	c.match.Scores[defender] = defScore

	until := now.Add(c.cfg.DisableDuration())
	d := tagarena.DisabledState{Until: until, By: attacker}
	c.disabled[defender] = d

	if defTeam != nil {
		c.sendTeamLocked(defTeam, c.disabledMsgLocked(d), true)
	}
	c.pushScoreLocked(attacker)
	c.pushScoreLocked(defender)

	c.publishLocked(events.Event{Kind: events.KindHit, At: now, Team: defender, Match: c.match.ID, Hit: &hit})
	c.publishLocked(events.Event{Kind: events.KindDisable, At: now, Team: defender, Match: c.match.ID})
	slog.Info("hit accepted", "attacker", attacker, "defender", defender,
		"seq", hit.Sequence, "points", hit.Points)
}

// disabledMsgLocked builds the ROBOT_DISABLED payload for the current
// disable window. DisabledUntil is absolute so redelivery never
// extends it.
func (c *Coordinator) disabledMsgLocked(d tagarena.DisabledState) *wire.RobotDisabled {
	name := ""
	if by, ok := c.roster[d.By]; ok {
		name = by.TeamName
	}
	return &wire.RobotDisabled{
		DisabledBy:    name,
		DisabledByID:  int(d.By),
		Duration:      c.cfg.DisableDuration().Seconds(),
		DisabledUntil: unix(d.Until),
	}
}

// pushScoreLocked sends a team its absolute totals and publishes the
// score event.
func (c *Coordinator) pushScoreLocked(id tagarena.TeamID) {
	s := c.match.Scores[id]
	t, ok := c.roster[id]
	if ok {
		c.sendTeamLocked(t, &wire.ScoreUpdate{Points: s.Points, Kills: s.Kills, Deaths: s.Deaths}, true)
	}
	score := s
	c.publishLocked(events.Event{Kind: events.KindScore, At: c.clock.Now(), Team: id,
		Match: c.match.ID, Score: &score})
}
