// Package store archives finished matches in SQLite so results survive
// coordinator restarts and tournament brackets can be settled later.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tagarena"
)

// ErrNotFound marks a lookup for a match that was never archived.
var ErrNotFound = errors.New("match not found")

// Archive is the on-disk match history.
type Archive struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          TEXT PRIMARY KEY,
	started_at  REAL NOT NULL,
	ended_at    REAL NOT NULL,
	duration_s  INTEGER NOT NULL,
	end_reason  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS hits (
	match_id  TEXT NOT NULL,
	sequence  INTEGER NOT NULL,
	t_s       REAL NOT NULL,
	attacker  INTEGER NOT NULL,
	defender  INTEGER NOT NULL,
	points    INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	category  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (match_id, sequence)
);
CREATE TABLE IF NOT EXISTS scores (
	match_id  TEXT NOT NULL,
	team      INTEGER NOT NULL,
	points    INTEGER NOT NULL,
	kills     INTEGER NOT NULL,
	deaths    INTEGER NOT NULL,
	PRIMARY KEY (match_id, team)
);
`

// Open creates or opens the archive at path.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SaveMatch writes one finished match. Saving the same match id again
// replaces it, so a late award re-save just overwrites.
func (a *Archive) SaveMatch(m tagarena.Match, endReason string) error {
	if m.ID == "" {
		return fmt.Errorf("refusing to archive a match without an id")
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO matches (id, started_at, ended_at, duration_s, end_reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ended_at = excluded.ended_at,
			end_reason = CASE WHEN excluded.end_reason = '' THEN matches.end_reason ELSE excluded.end_reason END`,
		m.ID, unix(m.StartTime), unix(m.EndTime), int(m.Duration/time.Second), endReason)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM hits WHERE match_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear hits: %w", err)
	}
	for _, h := range m.HitLog {
		_, err := tx.Exec(`INSERT INTO hits (match_id, sequence, t_s, attacker, defender, points, kind, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, h.Sequence, h.T.Seconds(), int(h.Attacker), int(h.Defender),
			h.Points, h.Kind.String(), string(h.Category))
		if err != nil {
			return fmt.Errorf("insert hit %d: %w", h.Sequence, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM scores WHERE match_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	for team, s := range m.Scores {
		_, err := tx.Exec(`INSERT INTO scores (match_id, team, points, kills, deaths)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, int(team), s.Points, s.Kills, s.Deaths)
		if err != nil {
			return fmt.Errorf("insert score for team %d: %w", team, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Summary is one row of the match listing.
type Summary struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	EndReason string
	Hits      int
}

// Matches lists the archive newest first.
func (a *Archive) Matches() ([]Summary, error) {
	rows, err := a.db.Query(`SELECT m.id, m.started_at, m.ended_at, m.duration_s, m.end_reason,
			(SELECT COUNT(*) FROM hits h WHERE h.match_id = m.id)
		FROM matches m ORDER BY m.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var started, ended float64
		var durS int
		if err := rows.Scan(&s.ID, &started, &ended, &durS, &s.EndReason, &s.Hits); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		s.StartedAt = fromUnix(started)
		s.EndedAt = fromUnix(ended)
		s.Duration = time.Duration(durS) * time.Second
		out = append(out, s)
	}
	return out, rows.Err()
}

// Match reloads one archived match with its hit log and scores.
func (a *Archive) Match(id string) (tagarena.Match, string, error) {
	var m tagarena.Match
	var started, ended float64
	var durS int
	var reason string

	err := a.db.QueryRow(`SELECT id, started_at, ended_at, duration_s, end_reason
		FROM matches WHERE id = ?`, id).Scan(&m.ID, &started, &ended, &durS, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return m, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return m, "", fmt.Errorf("query match: %w", err)
	}
	m.Phase = tagarena.PhaseEnded
	m.StartTime = fromUnix(started)
	m.EndTime = fromUnix(ended)
	m.Duration = time.Duration(durS) * time.Second

	hits, err := a.db.Query(`SELECT sequence, t_s, attacker, defender, points, kind, category
		FROM hits WHERE match_id = ? ORDER BY sequence`, id)
	if err != nil {
		return m, "", fmt.Errorf("query hits: %w", err)
	}
	defer hits.Close()
	for hits.Next() {
		var h tagarena.Hit
		var tS float64
		var attacker, defender int
		var kind, category string
		if err := hits.Scan(&h.Sequence, &tS, &attacker, &defender, &h.Points, &kind, &category); err != nil {
			return m, "", fmt.Errorf("scan hit: %w", err)
		}
		h.T = time.Duration(tS * float64(time.Second))
		h.Attacker = tagarena.TeamID(attacker)
		h.Defender = tagarena.TeamID(defender)
		if kind == tagarena.HitAward.String() {
			h.Kind = tagarena.HitAward
		}
		h.Category = tagarena.AwardCategory(category)
		m.HitLog = append(m.HitLog, h)
	}
	if err := hits.Err(); err != nil {
		return m, "", err
	}

	scores, err := a.db.Query(`SELECT team, points, kills, deaths FROM scores WHERE match_id = ?`, id)
	if err != nil {
		return m, "", fmt.Errorf("query scores: %w", err)
	}
	defer scores.Close()
	m.Scores = make(map[tagarena.TeamID]tagarena.Score)
	for scores.Next() {
		var team int
		var s tagarena.Score
		if err := scores.Scan(&team, &s.Points, &s.Kills, &s.Deaths); err != nil {
			return m, "", fmt.Errorf("scan score: %w", err)
		}
		m.Scores[tagarena.TeamID(team)] = s
		m.Participants = append(m.Participants, tagarena.TeamID(team))
	}
	return m, reason, scores.Err()
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(f float64) time.Time {
	return time.Unix(0, int64(f*float64(time.Second)))
}
