// Package config loads the arena configuration documents.
//
// Each binary reads one YAML document into an immutable Config
// snapshot. Nothing mutates a live Config; runtime reloads build a new
// snapshot and swap it atomically through a Store.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Team is the identity block. The robot's copy is authoritative; the
// operator learns it over the ConfigRequest handshake.
type Team struct {
	TeamID    int    `yaml:"team_id"`
	TeamName  string `yaml:"team_name"`
	RobotName string `yaml:"robot_name"`
}

// Network holds every port in the arena port map. All overridable.
type Network struct {
	CoordinatorIP    string `yaml:"coordinator_ip"`
	CoordinatorPort  int    `yaml:"coordinator_port"`
	RefereePort      int    `yaml:"referee_port"`
	OperatorPortBase int    `yaml:"operator_port_base"`
	RobotListenPort  int    `yaml:"robot_listen_port"`
	VideoPortBase    int    `yaml:"video_port_base"`
	// ProbeList is extra unicast destinations for discovery beacons,
	// for networks that filter subnet broadcast.
	ProbeList []string `yaml:"probe_list,omitempty"`
}

// Points is the scoring table. Values are configuration, not
// constants: historical deployments disagreed on the per-hit value.
type Points struct {
	PerHit int            `yaml:"per_hit"`
	Awards map[string]int `yaml:"awards"`
}

// IRProtocol is the pulse-train timing table, widths in microseconds.
type IRProtocol struct {
	CarrierHz        int `yaml:"carrier_frequency"`
	StartEndBurstUS  int `yaml:"start_end_burst_us"`
	Bit1BurstUS      int `yaml:"bit_1_burst_us"`
	Bit0BurstUS      int `yaml:"bit_0_burst_us"`
	ToleranceUS      int `yaml:"tolerance_us"`
	InterBitGapUS    int `yaml:"inter_bit_gap_us"`
	WeaponCooldownMS int `yaml:"weapon_cooldown_ms"`
	HitDisableTimeS  int `yaml:"hit_disable_time_s"`
}

// Safety holds the robot-side watchdog timeouts, in seconds.
type Safety struct {
	CommandTimeoutS    float64 `yaml:"command_timeout_s"`
	PowerSaveTimeoutS  float64 `yaml:"power_save_timeout_s"`
	HeartbeatIntervalS float64 `yaml:"heartbeat_interval_s"`
	ConfigTimeoutS     float64 `yaml:"config_timeout_s"`
}

// MatchRules holds coordinator-side tournament parameters.
type MatchRules struct {
	DefaultDurationS   int     `yaml:"default_duration_s"`
	DedupWindowMS      int     `yaml:"dedup_window_ms"`
	AwardGraceS        int     `yaml:"award_grace_s"`
	DiscoveryIntervalS int     `yaml:"discovery_interval_s"`
	LivenessStaleS     float64 `yaml:"liveness_stale_s"`
	LivenessOfflineS   float64 `yaml:"liveness_offline_s"`
}

// Config is one immutable snapshot of the whole document.
type Config struct {
	Team    Team       `yaml:"team"`
	Network Network    `yaml:"network"`
	Points  Points     `yaml:"points"`
	IR      IRProtocol `yaml:"ir_system"`
	Safety  Safety     `yaml:"safety"`
	Match   MatchRules `yaml:"match"`
}

// Default returns the arena defaults. Every field can be overridden by
// the YAML document.
func Default() *Config {
	return &Config{
		Network: Network{
			CoordinatorPort:  6000,
			RefereePort:      6700,
			OperatorPortBase: 6100,
			RobotListenPort:  5005,
			VideoPortBase:    5000,
		},
		Points: Points{
			PerHit: 10,
			Awards: map[string]int{
				"retrieval":  15,
				"steal":      20,
				"possession": 30,
			},
		},
		IR: IRProtocol{
			CarrierHz:        38000,
			StartEndBurstUS:  2400,
			Bit1BurstUS:      1200,
			Bit0BurstUS:      600,
			ToleranceUS:      150,
			InterBitGapUS:    800,
			WeaponCooldownMS: 2000,
			HitDisableTimeS:  10,
		},
		Safety: Safety{
			CommandTimeoutS:    0.8,
			PowerSaveTimeoutS:  10,
			HeartbeatIntervalS: 1,
			ConfigTimeoutS:     5,
		},
		Match: MatchRules{
			DefaultDurationS:   120,
			DedupWindowMS:      300,
			AwardGraceS:        300,
			DiscoveryIntervalS: 15,
			LivenessStaleS:     5,
			LivenessOfflineS:   15,
		},
	}
}

// Load reads a config document, layered over defaults. A missing file
// yields pure defaults (not an error) so daemons can start on a fresh
// machine; a present-but-invalid file is fatal.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the snapshot back to disk.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields whose corruption would be silent at
// runtime. Team identity is only required on robot/operator documents,
// so a zero TeamID passes here and is checked by those daemons.
func (c *Config) Validate() error {
	if c.Team.TeamID != 0 && (c.Team.TeamID < 1 || c.Team.TeamID > 255) {
		return fmt.Errorf("team_id %d out of range [1,255]", c.Team.TeamID)
	}
	if c.Team.TeamID != 0 && c.Team.TeamName == "" {
		return fmt.Errorf("team_name required once team_id is set")
	}
	for _, p := range []struct {
		name string
		v    int
	}{
		{"coordinator_port", c.Network.CoordinatorPort},
		{"referee_port", c.Network.RefereePort},
		{"operator_port_base", c.Network.OperatorPortBase},
		{"robot_listen_port", c.Network.RobotListenPort},
	} {
		if p.v < 1 || p.v > 65535 {
			return fmt.Errorf("%s %d out of range", p.name, p.v)
		}
	}
	if c.Points.PerHit < 0 {
		return fmt.Errorf("points per_hit must not be negative")
	}
	if c.IR.ToleranceUS <= 0 {
		return fmt.Errorf("ir tolerance must be positive")
	}
	if c.IR.Bit1BurstUS-c.IR.Bit0BurstUS <= 2*c.IR.ToleranceUS {
		return fmt.Errorf("ir bit bursts overlap within tolerance (%dus vs %dus, tolerance %dus)",
			c.IR.Bit0BurstUS, c.IR.Bit1BurstUS, c.IR.ToleranceUS)
	}
	return nil
}

// Duration accessors. The document stores plain numbers with unit
// suffixes in the field names, matching the deployed robot configs.

func (c *Config) WeaponCooldown() time.Duration {
	return time.Duration(c.IR.WeaponCooldownMS) * time.Millisecond
}

func (c *Config) DisableDuration() time.Duration {
	return time.Duration(c.IR.HitDisableTimeS) * time.Second
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Safety.CommandTimeoutS * float64(time.Second))
}

func (c *Config) PowerSaveTimeout() time.Duration {
	return time.Duration(c.Safety.PowerSaveTimeoutS * float64(time.Second))
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Safety.HeartbeatIntervalS * float64(time.Second))
}

func (c *Config) ConfigTimeout() time.Duration {
	return time.Duration(c.Safety.ConfigTimeoutS * float64(time.Second))
}

func (c *Config) DefaultMatchDuration() time.Duration {
	return time.Duration(c.Match.DefaultDurationS) * time.Second
}

func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Match.DedupWindowMS) * time.Millisecond
}

func (c *Config) AwardGrace() time.Duration {
	return time.Duration(c.Match.AwardGraceS) * time.Second
}

func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Match.DiscoveryIntervalS) * time.Second
}

func (c *Config) LivenessStale() time.Duration {
	return time.Duration(c.Match.LivenessStaleS * float64(time.Second))
}

func (c *Config) LivenessOffline() time.Duration {
	return time.Duration(c.Match.LivenessOfflineS * float64(time.Second))
}

// OperatorPort returns the operator proxy's UDP port for a team.
func (c *Config) OperatorPort(teamID int) int {
	return c.Network.OperatorPortBase + teamID
}

// VideoPort returns the derived video stream port for a team.
func (c *Config) VideoPort(teamID int) int {
	return c.Network.VideoPortBase + teamID
}
