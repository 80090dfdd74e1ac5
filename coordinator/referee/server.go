// Package referee exposes the coordinator's judging surface over HTTP.
// The referee station is a browser or curl on the arena network; the
// endpoints are deliberately plain JSON over GET and POST.
package referee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tagarena"
	"tagarena/coordinator"
	"tagarena/internal/check"
	"tagarena/internal/signal/ntp"
)

// Arena is the slice of the coordinator the referee surface needs.
type Arena interface {
	Teams() []coordinator.TeamStatus
	MatchView() tagarena.Match
	Health() tagarena.RosterHealth
	Arm(ids []int) error
	StartMatch(duration time.Duration) error
	EndMatch() error
	Cancel() error
	Award(id int, category string) error
	AwardsAllowed() bool
	ForceReady(id int, reason string) error
	ReadyCheckAll()
}

// Server serves the referee endpoints on one listener.
type Server struct {
	arena           Arena
	clockHealth     *ntp.Checker
	defaultDuration time.Duration

	srv      *http.Server
	listener net.Listener
}

// Option adjusts a Server.
type Option func(*Server)

// WithClockHealth surfaces NTP status on GET /health.
func WithClockHealth(c *ntp.Checker) Option {
	return func(s *Server) { s.clockHealth = c }
}

// New builds a referee server. defaultDuration is used when a start
// request omits the duration.
func New(arena Arena, defaultDuration time.Duration, opts ...Option) *Server {
	check.Assert(arena != nil, "referee.New: arena must not be nil")
	s := &Server{arena: arena, defaultDuration: defaultDuration}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routing table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /teams", s.getTeams)
	mux.HandleFunc("GET /match", s.getMatch)
	mux.HandleFunc("GET /health", s.getHealth)
	mux.HandleFunc("POST /award", s.postAward)
	mux.HandleFunc("POST /match/arm", s.postArm)
	mux.HandleFunc("POST /match/start", s.postStart)
	mux.HandleFunc("POST /match/end", s.postEnd)
	mux.HandleFunc("POST /match/cancel", s.postCancel)
	mux.HandleFunc("POST /readycheck", s.postReadyCheck)
	mux.HandleFunc("POST /forceready", s.postForceReady)
	return mux
}

// Start binds the listener and serves in the background. A bind
// failure is returned synchronously.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("bind referee :%d: %w", port, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("referee server", "err", err)
		}
	}()
	slog.Info("referee listening", "addr", ln.Addr())
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type teamJSON struct {
	TeamID        int     `json:"team_id"`
	TeamName      string  `json:"team_name"`
	RobotName     string  `json:"robot_name"`
	Ready         bool    `json:"ready"`
	Liveness      string  `json:"liveness"`
	Points        int     `json:"points"`
	Kills         int     `json:"kills"`
	Deaths        int     `json:"deaths"`
	Disabled      bool    `json:"disabled"`
	DisabledBy    int     `json:"disabled_by,omitempty"`
	DisabledUntil float64 `json:"disabled_until,omitempty"`
	OperatorAddr  string  `json:"operator_addr,omitempty"`
	RobotAddr     string  `json:"robot_addr,omitempty"`
}

func (s *Server) getTeams(w http.ResponseWriter, r *http.Request) {
	teams := s.arena.Teams()
	out := make(map[string]teamJSON, len(teams))
	for _, ts := range teams {
		row := teamJSON{
			TeamID:    int(ts.Team.ID),
			TeamName:  ts.Team.TeamName,
			RobotName: ts.Team.RobotName,
			Ready:     ts.Team.Ready,
			Liveness:  ts.Liveness.String(),
			Points:    ts.Score.Points,
			Kills:     ts.Score.Kills,
			Deaths:    ts.Score.Deaths,
			Disabled:  ts.Disabled,
		}
		if ts.Disabled {
			row.DisabledBy = int(ts.DisabledBy)
			row.DisabledUntil = float64(ts.DisabledUntil.UnixNano()) / float64(time.Second)
		}
		if ts.Team.OperatorAddr.IsValid() {
			row.OperatorAddr = ts.Team.OperatorAddr.String()
		}
		if ts.Team.RobotAddr.IsValid() {
			row.RobotAddr = ts.Team.RobotAddr.String()
		}
		out[fmt.Sprint(ts.Team.ID)] = row
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"teams":          out,
		"match_running":  s.arena.MatchView().Phase == tagarena.PhaseRunning,
		"awards_allowed": s.arena.AwardsAllowed(),
	})
}

type hitJSON struct {
	Sequence int     `json:"sequence"`
	T        float64 `json:"t"`
	Attacker int     `json:"attacker"`
	Defender int     `json:"defender,omitempty"`
	Points   int     `json:"points"`
	Kind     string  `json:"kind"`
	Category string  `json:"category,omitempty"`
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m := s.arena.MatchView()
	hits := make([]hitJSON, 0, len(m.HitLog))
	for _, h := range m.HitLog {
		hits = append(hits, hitJSON{
			Sequence: h.Sequence,
			T:        h.T.Seconds(),
			Attacker: int(h.Attacker),
			Defender: int(h.Defender),
			Points:   h.Points,
			Kind:     h.Kind.String(),
			Category: string(h.Category),
		})
	}
	scores := make(map[string]map[string]int, len(m.Scores))
	for id, sc := range m.Scores {
		scores[fmt.Sprint(id)] = map[string]int{
			"points": sc.Points, "kills": sc.Kills, "deaths": sc.Deaths,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id":     m.ID,
		"phase":        m.Phase.String(),
		"duration_s":   int(m.Duration / time.Second),
		"participants": m.Participants,
		"scores":       scores,
		"hit_log":      hits,
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	h := s.arena.Health()
	body := map[string]any{
		"teams_total":   h.Total,
		"teams_online":  h.Online,
		"teams_stale":   h.Stale,
		"teams_offline": h.Offline,
		"all_reachable": h.AllReachable(),
	}
	if s.clockHealth != nil {
		st := s.clockHealth.Status()
		body["ntp_phase"] = st.Phase.String()
		body["ntp_offset_ms"] = st.Offset.Milliseconds()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) postAward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamID   int    `json:"team_id"`
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.respondAward(w, s.arena.Award(req.TeamID, req.Category))
}

func (s *Server) postArm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Participants []int `json:"participants"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, s.arena.Arm(req.Participants))
}

func (s *Server) postStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DurationS *int `json:"duration_s"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d := s.defaultDuration
	if req.DurationS != nil {
		d = time.Duration(*req.DurationS) * time.Second
	}
	s.respond(w, s.arena.StartMatch(d))
}

func (s *Server) postEnd(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.arena.EndMatch())
}

func (s *Server) postCancel(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.arena.Cancel())
}

func (s *Server) postReadyCheck(w http.ResponseWriter, r *http.Request) {
	s.arena.ReadyCheckAll()
	s.respond(w, nil)
}

func (s *Server) postForceReady(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamID int    `json:"team_id"`
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "referee override"
	}
	s.respond(w, s.arena.ForceReady(req.TeamID, req.Reason))
}

// respond maps coordinator errors onto HTTP statuses for the match
// lifecycle endpoints: phase conflicts are 409, everything else the
// caller got wrong is 400.
func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, coordinator.ErrPhase), errors.Is(err, coordinator.ErrGraceExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

// respondAward maps award errors onto the referee contract: an unknown
// team is 404, an award outside the allowed window is 403, an unknown
// category or malformed request is 400.
func (s *Server) respondAward(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, coordinator.ErrUnknownTeam):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, coordinator.ErrPhase), errors.Is(err, coordinator.ErrGraceExpired):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("write response", "err", err)
	}
}
