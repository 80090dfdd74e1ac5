package main

import (
	"errors"
	"log/slog"
	"sync"

	"tagarena/robot/ir"
)

var errMissingTeam = errors.New("robot config has no team_id; refusing to start")

// simActuator stands in for the drivetrain when running off-robot. It
// only logs transitions, not the 50Hz steady state.
type simActuator struct {
	mu      sync.Mutex
	moving  bool
	standby bool
}

func (s *simActuator) Drive(vx, vy, vr float64) {
	s.mu.Lock()
	wasMoving := s.moving
	s.moving = vx != 0 || vy != 0 || vr != 0
	changed := s.moving != wasMoving
	s.mu.Unlock()
	if changed {
		slog.Debug("sim drive", "vx", vx, "vy", vy, "vr", vr, "moving", s.moving)
	}
}

func (s *simActuator) Stop() {
	s.mu.Lock()
	wasMoving := s.moving
	s.moving = false
	s.mu.Unlock()
	if wasMoving {
		slog.Debug("sim stop")
	}
}

func (s *simActuator) SetServos(s1, s2 float64) {}
func (s *simActuator) SetGPIO(pins [4]bool)     {}
func (s *simActuator) SetLights(on bool)        {}

func (s *simActuator) Standby(on bool) {
	s.mu.Lock()
	changed := s.standby != on
	s.standby = on
	s.mu.Unlock()
	if changed {
		slog.Info("sim standby", "on", on)
	}
}

// simEmitter logs fired frames instead of keying a carrier.
type simEmitter struct{}

func (simEmitter) Transmit(frame ir.Frame) error {
	slog.Info("sim ir transmit", "marks", (len(frame)+1)/2)
	return nil
}
