package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Network.CoordinatorPort != 6000 || cfg.Network.RefereePort != 6700 {
		t.Fatalf("defaults not applied: %+v", cfg.Network)
	}
	if cfg.Points.PerHit != 10 {
		t.Fatalf("per_hit default = %d", cfg.Points.PerHit)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	doc := `
team:
  team_id: 7
  team_name: crimson
network:
  coordinator_ip: 10.0.0.100
points:
  per_hit: 25
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Team.TeamID != 7 || cfg.Team.TeamName != "crimson" {
		t.Fatalf("team block: %+v", cfg.Team)
	}
	if cfg.Points.PerHit != 25 {
		t.Fatalf("override lost: %d", cfg.Points.PerHit)
	}
	// Untouched fields keep defaults.
	if cfg.Network.CoordinatorPort != 6000 || cfg.IR.CarrierHz != 38000 {
		t.Fatalf("defaults clobbered: %+v", cfg.Network)
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	cases := map[string]string{
		"team id out of range": "team:\n  team_id: 300\n",
		"identity without name": "team:\n  team_id: 4\n",
		"bad port":             "network:\n  coordinator_port: 0\n",
		"negative per_hit":     "points:\n  per_hit: -1\n",
		"overlapping ir bits":  "ir_system:\n  bit_1_burst_us: 700\n  bit_0_burst_us: 600\n",
		"unparseable yaml":     "team: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "arena.yaml")
			if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	cfg := Default()
	cfg.Team = Team{TeamID: 42, TeamName: "crimson", RobotName: "ferris"}
	cfg.Network.ProbeList = []string{"10.0.0.5"}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Team.TeamID != 42 {
		t.Fatalf("team id = %d", loaded.Team.TeamID)
	}
	if len(loaded.Network.ProbeList) != 1 || loaded.Network.ProbeList[0] != "10.0.0.5" {
		t.Fatalf("probe list: %v", loaded.Network.ProbeList)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	for _, tc := range []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"weapon cooldown", cfg.WeaponCooldown(), 2 * time.Second},
		{"disable duration", cfg.DisableDuration(), 10 * time.Second},
		{"command timeout", cfg.CommandTimeout(), 800 * time.Millisecond},
		{"power save", cfg.PowerSaveTimeout(), 10 * time.Second},
		{"heartbeat", cfg.HeartbeatInterval(), time.Second},
		{"config timeout", cfg.ConfigTimeout(), 5 * time.Second},
		{"match duration", cfg.DefaultMatchDuration(), 120 * time.Second},
		{"dedup window", cfg.DedupWindow(), 300 * time.Millisecond},
		{"award grace", cfg.AwardGrace(), 300 * time.Second},
		{"discovery", cfg.DiscoveryInterval(), 15 * time.Second},
		{"stale", cfg.LivenessStale(), 5 * time.Second},
		{"offline", cfg.LivenessOffline(), 15 * time.Second},
	} {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestDerivedPorts(t *testing.T) {
	cfg := Default()
	if got := cfg.OperatorPort(4); got != 6104 {
		t.Fatalf("operator port = %d", got)
	}
	if got := cfg.VideoPort(4); got != 5004 {
		t.Fatalf("video port = %d", got)
	}
}

func TestStoreReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	first := s.Current()
	if first.Points.PerHit != 10 {
		t.Fatalf("initial snapshot: %+v", first.Points)
	}

	if err := os.WriteFile(path, []byte("points:\n  per_hit: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if s.Current().Points.PerHit != 99 {
		t.Fatal("reload did not take")
	}
	// The old snapshot is immutable and unaffected.
	if first.Points.PerHit != 10 {
		t.Fatal("old snapshot mutated")
	}
}

func TestStoreReloadKeepsSnapshotOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("team: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload failure")
	}
	if s.Current().Points.PerHit != 10 {
		t.Fatal("failed reload replaced snapshot")
	}
}
