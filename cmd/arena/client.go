package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// client is a thin wrapper over the referee HTTP surface.
type client struct {
	base string
	http *http.Client
}

func newClient(server string) *client {
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type teamRow struct {
	TeamID        int     `json:"team_id"`
	TeamName      string  `json:"team_name"`
	RobotName     string  `json:"robot_name"`
	Ready         bool    `json:"ready"`
	Liveness      string  `json:"liveness"`
	Points        int     `json:"points"`
	Kills         int     `json:"kills"`
	Deaths        int     `json:"deaths"`
	Disabled      bool    `json:"disabled"`
	DisabledBy    int     `json:"disabled_by"`
	DisabledUntil float64 `json:"disabled_until"`
	OperatorAddr  string  `json:"operator_addr"`
	RobotAddr     string  `json:"robot_addr"`
}

type matchReport struct {
	MatchID      string                    `json:"match_id"`
	Phase        string                    `json:"phase"`
	DurationS    int                       `json:"duration_s"`
	Participants []int                     `json:"participants"`
	Scores       map[string]map[string]int `json:"scores"`
	HitLog       []hitRow                  `json:"hit_log"`
}

type hitRow struct {
	Sequence int     `json:"sequence"`
	T        float64 `json:"t"`
	Attacker int     `json:"attacker"`
	Defender int     `json:"defender"`
	Points   int     `json:"points"`
	Kind     string  `json:"kind"`
	Category string  `json:"category"`
}

type healthReport struct {
	TeamsTotal   int    `json:"teams_total"`
	TeamsOnline  int    `json:"teams_online"`
	TeamsStale   int    `json:"teams_stale"`
	TeamsOffline int    `json:"teams_offline"`
	AllReachable bool   `json:"all_reachable"`
	NTPPhase     string `json:"ntp_phase"`
	NTPOffsetMS  int64  `json:"ntp_offset_ms"`
}

// teamsReport mirrors GET /teams: rows keyed by team id plus the
// match and award flags the referee station surfaces.
type teamsReport struct {
	Teams         map[string]teamRow `json:"teams"`
	MatchRunning  bool               `json:"match_running"`
	AwardsAllowed bool               `json:"awards_allowed"`
}

func (c *client) teams(ctx context.Context) (teamsReport, error) {
	var out teamsReport
	err := c.get(ctx, "/teams", &out)
	return out, err
}

func (c *client) match(ctx context.Context) (matchReport, error) {
	var out matchReport
	err := c.get(ctx, "/match", &out)
	return out, err
}

func (c *client) health(ctx context.Context) (healthReport, error) {
	var out healthReport
	err := c.get(ctx, "/health", &out)
	return out, err
}

func (c *client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("referee at %s unreachable: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func (c *client) post(ctx context.Context, path string, body any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("referee at %s unreachable: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s", body.Error)
	}
	return fmt.Errorf("referee returned %s", resp.Status)
}
