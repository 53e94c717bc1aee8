package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tick too short", func(c *Config) { c.Timing.Tick = 5 }},
		{"bad period clock", func(c *Config) { c.Schedule.Periods[0].Start = "25:00" }},
		{"bad window clock", func(c *Config) { c.Schedule.RestartWindow.End = "6h30" }},
		{"duplicate period", func(c *Config) { c.Schedule.Periods[1].Name = c.Schedule.Periods[0].Name }},
		{"no periods", func(c *Config) { c.Schedule.Periods = nil }},
		{"unknown plant", func(c *Config) { c.Plant.Type = "Mandragore" }},
		{"negative boost", func(c *Config) { c.Plant.Type = "Tomates"; c.Plant.GrowthBoost = -10 }},
		{"seed slot overlaps carriers", func(c *Config) { c.Inventory.CarrierSlots = 4; c.Inventory.SeedSlot = 2 }},
		{"carrier slots out of range", func(c *Config) { c.Inventory.CarrierSlots = 10 }},
		{"bad log encoding", func(c *Config) { c.LogEncoding = "latin1" }},
		{"station with spaces", func(c *Config) { c.Stations = []string{"ferme 1"} }},
		{"empty key", func(c *Config) { c.Keys.Refill = "" }},
		{"unknown carrier action", func(c *Config) { c.Schedule.Periods[0].Carriers = "juggle" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestValidateConfigAcceptsSeedSlotAfterCarriers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inventory.CarrierSlots = 4
	cfg.Inventory.SeedSlot = 8
	cfg.Plant.Type = "Tomates"
	cfg.Stations = []string{"ferme1", "ferme2"}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "agribot.yaml")
	cfg := DefaultConfig()
	cfg.Stations = []string{"ferme1", "ferme2", "ferme3"}
	cfg.Plant = PlantConfig{Type: "Laitue", GrowthBoost: 50}
	cfg.Positions.SlotGrid.Origin = Point{X: 640, Y: 300}

	if err := WriteConfig(path, cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	got, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if len(got.Stations) != 3 || got.Stations[2] != "ferme3" {
		t.Errorf("Stations = %v", got.Stations)
	}
	if got.Plant != cfg.Plant || got.Positions.SlotGrid != cfg.Positions.SlotGrid {
		t.Errorf("plant %+v grid %+v", got.Plant, got.Positions.SlotGrid)
	}
	if got.SessionPauseDuration() != 7*time.Minute {
		t.Errorf("SessionPauseDuration = %v, want 7m", got.SessionPauseDuration())
	}
}

func TestReadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agribot.yaml")
	data := "stations: [ferme1]\ntiming:\n  tick: 100\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Timing.Tick != 100 {
		t.Errorf("Tick = %d, want 100", cfg.Timing.Tick)
	}
	if cfg.Timing.PanelTimeout != DefaultConfig().Timing.PanelTimeout {
		t.Errorf("PanelTimeout lost its default: %d", cfg.Timing.PanelTimeout)
	}
	if cfg.Keys.Refill != "f7" {
		t.Errorf("Refill = %q", cfg.Keys.Refill)
	}
}

func TestReadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	cfg, err := ReadConfig(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v, want ErrNotExist", err)
	}
	if cfg == nil || cfg.Timing.Tick != 50 {
		t.Errorf("missing file did not return defaults: %+v", cfg)
	}

	cfg, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil || cfg == nil {
		t.Errorf("LoadConfig missing file = %v, %v", cfg, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("timing: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil || errors.Is(err, os.ErrNotExist) {
		t.Errorf("broken yaml: err = %v", err)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("timing:\n  tick: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("invalid config loaded")
	}
}

func TestConfigStoreSnapshotAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agribot.yaml")
	cfg := DefaultConfig()
	cfg.Stations = []string{"ferme1"}
	if err := WriteConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	store := NewConfigStore(path, cfg)
	snap := store.Snapshot()
	snap.Stations[0] = "changed"
	snap.Schedule.Periods[0].Name = "changed"
	if store.Stations()[0] != "ferme1" || store.Snapshot().Schedule.Periods[0].Name == "changed" {
		t.Fatal("snapshot shares memory with the store")
	}

	cfg.Stations = []string{"ferme1", "ferme2"}
	if err := WriteConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := store.Stations(); len(got) != 2 {
		t.Errorf("Stations after reload = %v", got)
	}
	// snapshots taken before the reload stay as they were
	if len(snap.Stations) != 1 {
		t.Errorf("old snapshot changed: %v", snap.Stations)
	}

	if err := os.WriteFile(path, []byte("timing:\n  tick: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err == nil {
		t.Error("invalid reload accepted")
	}
	if got := store.Stations(); len(got) != 2 {
		t.Errorf("failed reload replaced the config: %v", got)
	}
}

func TestSessionPauseDuration(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SessionPauseDuration(); got != 15*time.Minute {
		t.Errorf("without plant = %v, want 15m", got)
	}
	cfg.Plant = PlantConfig{Type: "Tomates", GrowthBoost: 100}
	if got := cfg.SessionPauseDuration(); got != 70*time.Minute {
		t.Errorf("Tomates +100%% = %v, want 70m", got)
	}
}

func TestAutoReplyNeedsPlayer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoReply.Enabled = true
	if err := ValidateConfig(cfg); err == nil || !strings.Contains(err.Error(), "player name") {
		t.Errorf("err = %v", err)
	}
	cfg.AutoReply.Player = "Dayti"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("err = %v", err)
	}

	clone := cfg.Clone()
	clone.AutoReply.Triggers[0] = "changed"
	if cfg.AutoReply.Triggers[0] == "changed" {
		t.Error("Clone shares the trigger list")
	}
}
