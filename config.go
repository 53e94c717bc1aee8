// Package main - config.go
//
// Bot configuration: a YAML file (agribot.yaml by default) merged over
// DefaultConfig and validated against an embedded JSON schema.
//
// Load Behavior:
//   - File missing: defaults are used and the caller may write them out
//   - File malformed: error (the bot refuses to start on a broken file)
//   - Fields absent from the file keep their default value
//
// Thread Safety:
// ConfigStore guards the live configuration with an RWMutex. The tray may
// reload it at any time; the controller only reads a snapshot copy at the
// start of each session.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Config holds bot configuration
type Config struct {
	LogPath       string `yaml:"log_path"`     // game client log (latest.log)
	LogEncoding   string `yaml:"log_encoding"` // "utf-8" or "windows-1252"
	DataDir       string `yaml:"data_dir"`     // state file and journal
	LoginPassword string `yaml:"login_password"`
	StatusAddr    string `yaml:"status_addr"` // "" disables the status feed

	Stations []string    `yaml:"stations"`
	Plant    PlantConfig `yaml:"plant"`

	SessionPause int `yaml:"session_pause"` // seconds, used when no plant is selected
	StartupDelay int `yaml:"startup_delay"` // seconds

	Homes     HomesConfig     `yaml:"homes"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Keys      KeysConfig      `yaml:"keys"`
	Hotkeys   HotkeysConfig   `yaml:"hotkeys"`
	Positions PositionsConfig `yaml:"positions"`
	Screen    ScreenConfig    `yaml:"screen"`
	Inventory InventoryConfig `yaml:"inventory"`
	Timing    TimingConfig    `yaml:"timing"`
	Water     WaterConfig     `yaml:"water"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	AutoReply AutoReplyConfig `yaml:"auto_reply"`
}

// PlantConfig selects the crop grown at every station
type PlantConfig struct {
	Type        string  `yaml:"type"`
	GrowthBoost float64 `yaml:"growth_boost"` // percent
}

// HomesConfig names the teleport homes used outside the station list
type HomesConfig struct {
	BucketDrop   string `yaml:"bucket_drop"`
	BucketSupply string `yaml:"bucket_supply"`
	SeedSupply   string `yaml:"seed_supply"` // "" disables seed fetching
}

// ScheduleConfig defines the daily periods and the server restart window
type ScheduleConfig struct {
	Periods       []PeriodConfig `yaml:"periods"`
	RestartWindow WindowConfig   `yaml:"restart_window"`
}

// PeriodConfig is one named period starting at a wall-clock time
type PeriodConfig struct {
	Name     string `yaml:"name"`
	Start    string `yaml:"start"`    // "HH:MM"
	Carriers string `yaml:"carriers"` // "deposit", "withdraw" or "none"
}

// WindowConfig is a [start, end) wall-clock interval
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// KeysConfig holds the in-game key bindings
type KeysConfig struct {
	Seed   string `yaml:"seed"`
	Refill string `yaml:"refill"` // server macro filling the carriers in hand
	Crouch string `yaml:"crouch"`
	Chat   string `yaml:"chat"`
	Escape string `yaml:"escape"`
}

// HotkeysConfig holds the global hotkeys of the bot itself
type HotkeysConfig struct {
	Stop  string `yaml:"stop"`
	Start string `yaml:"start"`
}

// PositionsConfig holds screen positions of the menus the bot clicks
type PositionsConfig struct {
	ServerConnect Point    `yaml:"server_connect"`
	ServerConfirm Point    `yaml:"server_confirm"`
	Disconnect    Point    `yaml:"disconnect"`
	SlotGrid      SlotGrid `yaml:"slot_grid"`
}

// SlotGrid locates panel slots on screen. Origin is the center of
// container slot 0; the player inventory starts PlayerOffset pixels below
// the last container row and the hotbar HotbarOffset below the inventory.
type SlotGrid struct {
	Origin       Point `yaml:"origin"`
	Size         int   `yaml:"size"`
	PlayerOffset int   `yaml:"player_offset"`
	HotbarOffset int   `yaml:"hotbar_offset"`
}

// ScreenConfig configures the screenshot panel observer
type ScreenConfig struct {
	PanelProbe    Point    `yaml:"panel_probe"`
	PanelColor    Color    `yaml:"panel_color"`
	SlotColor     Color    `yaml:"slot_color"`
	Tolerance     uint8    `yaml:"tolerance"`
	TitleRegion   Bounds   `yaml:"title_region"`
	OCRLanguages  []string `yaml:"ocr_languages"`
	StationTitles []string `yaml:"station_titles"` // title keywords of station menus
	HarvestProbe  Point    `yaml:"harvest_probe"`  // pixel that shows a ripe crop
	HarvestColor  Color    `yaml:"harvest_color"`
	HarvestAlways bool     `yaml:"harvest_always"` // report the harvest slot without probing
}

// InventoryConfig describes item kinds and hotbar layout
type InventoryConfig struct {
	CarrierSlots  int    `yaml:"carrier_slots"`
	FullKind      string `yaml:"full_kind"`
	EmptyKind     string `yaml:"empty_kind"`
	SeedKind      string `yaml:"seed_kind"`
	SeedSlot      int    `yaml:"seed_slot"` // hotbar index, -1 disables seed tracking
	SeedCount     int    `yaml:"seed_count"`
	HarvestMarker string `yaml:"harvest_marker"`
	HarvestSlot   int    `yaml:"harvest_slot"`
	Carriers      int    `yaml:"carriers"`    // carriers owned in multi-carrier mode
	SupplySlot    int    `yaml:"supply_slot"` // container slot of the carriers at the supply home
}

// TimingConfig holds delays and timeouts, all in milliseconds
type TimingConfig struct {
	Tick            int `yaml:"tick"`
	PanelTimeout    int `yaml:"panel_timeout"`
	PanelPoll       int `yaml:"panel_poll"`
	Stabilization   int `yaml:"stabilization"`
	ConnectTimeout  int `yaml:"connect_timeout"`
	TeleportTimeout int `yaml:"teleport_timeout"`
	PourInterval    int `yaml:"pour_interval"`
	RefillDelay     int `yaml:"refill_delay"`
	ActionDelay     int `yaml:"action_delay"`
}

// WaterConfig holds the water lifetime and fill loop caps
type WaterConfig struct {
	DurationHours    int     `yaml:"duration_hours"`
	MarginMinutes    int     `yaml:"margin_minutes"`
	SingleCarrierCap int     `yaml:"single_carrier_cap"`
	MultiCarrierCap  int     `yaml:"multi_carrier_cap"`
	TeleportDistance float64 `yaml:"teleport_distance"`
}

// RecoveryConfig holds retry caps and backoffs (seconds)
type RecoveryConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	CrashBackoff int `yaml:"crash_backoff"`
	ErrorBackoff int `yaml:"error_backoff"`
	EventPause   int `yaml:"event_pause"`
}

// PatternsConfig holds the regular expressions matched against the game log
type PatternsConfig struct {
	Connected    string `yaml:"connected"`
	Disconnected string `yaml:"disconnected"`
	StationFull  string `yaml:"station_full"`
	Teleported   string `yaml:"teleported"`
	Event        string `yaml:"event"`
}

// AutoReplyConfig holds the chat auto-reply settings
type AutoReplyConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Player      string   `yaml:"player"`       // own in-game name
	Triggers    []string `yaml:"triggers"`     // greeting words
	Replies     []string `yaml:"replies"`      // used in turn, "{sender}" is replaced
	GreetWindow int      `yaml:"greet_window"` // seconds after login where any greeting is answered
	Cooldown    int      `yaml:"cooldown"`     // ms between two replies
	MaxDelay    int      `yaml:"max_delay"`    // ms a reply may wait for a quiet moment
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		LogEncoding:  "windows-1252",
		DataDir:      ".",
		StatusAddr:   "127.0.0.1:8765",
		Stations:     []string{},
		SessionPause: 900,
		StartupDelay: 5,
		Homes: HomesConfig{
			BucketDrop:   "coffre1",
			BucketSupply: "coffre2",
		},
		Schedule: ScheduleConfig{
			Periods: []PeriodConfig{
				{Name: string(PeriodMorning), Start: "06:30", Carriers: "deposit"},
				{Name: string(PeriodDay), Start: "11:30", Carriers: "withdraw"},
			},
			RestartWindow: WindowConfig{Start: "05:50", End: "06:30"},
		},
		Keys: KeysConfig{
			Seed:   "0",
			Refill: "f7",
			Crouch: "q",
			Chat:   "t",
			Escape: "esc",
		},
		Hotkeys: HotkeysConfig{
			Stop:  "f10",
			Start: "f9",
		},
		Positions: PositionsConfig{
			SlotGrid: SlotGrid{Size: 36, PlayerOffset: 28, HotbarOffset: 8},
		},
		Screen: ScreenConfig{
			PanelColor:    Color{R: 198, G: 198, B: 198},
			SlotColor:     Color{R: 139, G: 139, B: 139},
			Tolerance:     6,
			OCRLanguages:  []string{"eng", "fra"},
			StationTitles: []string{"station", "croissance"},
			HarvestAlways: true,
		},
		Inventory: InventoryConfig{
			CarrierSlots:  9,
			FullKind:      "water_bucket",
			EmptyKind:     "bucket",
			SeedKind:      "seed",
			SeedSlot:      -1,
			HarvestMarker: "harvest",
			HarvestSlot:   13,
			Carriers:      16,
			SupplySlot:    0,
		},
		Timing: TimingConfig{
			Tick:            50,
			PanelTimeout:    5000,
			PanelPoll:       50,
			Stabilization:   2000,
			ConnectTimeout:  60000,
			TeleportTimeout: 4000,
			PourInterval:    3000,
			RefillDelay:     3000,
			ActionDelay:     300,
		},
		Water: WaterConfig{
			DurationHours:    12,
			MarginMinutes:    10,
			SingleCarrierCap: 50,
			MultiCarrierCap:  32,
			TeleportDistance: 4,
		},
		Recovery: RecoveryConfig{
			MaxRetries:   3,
			CrashBackoff: 30,
			ErrorBackoff: 600,
			EventPause:   300,
		},
		Patterns: PatternsConfig{
			Connected:    `Loaded \d+ advancements`,
			Disconnected: `Lost connection|Disconnected from server|Connection lost`,
			StationFull:  `Votre Station de Croissance est déjà pleine d'eau`,
		},
		AutoReply: AutoReplyConfig{
			Triggers:    []string{"salut", "slt", "bonjour", "bjr", "coucou", "cc", "yo", "hello", "hey", "wesh"},
			Replies:     []string{"salut {sender}", "yo", "hey {sender}"},
			GreetWindow: 30,
			Cooldown:    3000,
			MaxDelay:    60000,
		},
	}
}

// ms converts a millisecond setting to a duration
func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// SessionPauseDuration returns the pause between sessions. A selected
// plant overrides session_pause with its boosted growth time.
func (c *Config) SessionPauseDuration() time.Duration {
	if c.Plant.Type != "" {
		if minutes := GrowthMinutes(c.Plant.Type, c.Plant.GrowthBoost); minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return time.Duration(c.SessionPause) * time.Second
}

// WaterDuration returns how long a full station keeps water
func (c *Config) WaterDuration() time.Duration {
	return time.Duration(c.Water.DurationHours) * time.Hour
}

// WaterMargin returns the safety margin before the water runs out
func (c *Config) WaterMargin() time.Duration {
	return time.Duration(c.Water.MarginMinutes) * time.Minute
}

// Clone returns a deep copy, safe to hand to another goroutine
func (c *Config) Clone() *Config {
	out := *c
	out.Stations = append([]string(nil), c.Stations...)
	out.Schedule.Periods = append([]PeriodConfig(nil), c.Schedule.Periods...)
	out.Screen.OCRLanguages = append([]string(nil), c.Screen.OCRLanguages...)
	out.Screen.StationTitles = append([]string(nil), c.Screen.StationTitles...)
	out.AutoReply.Triggers = append([]string(nil), c.AutoReply.Triggers...)
	out.AutoReply.Replies = append([]string(nil), c.AutoReply.Replies...)
	return &out
}

// DataPath resolves a file name inside the data directory
func (c *Config) DataPath(name string) string {
	if c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// ReadConfig reads a YAML config file over the defaults and validates it.
// A missing file returns the defaults together with an os.ErrNotExist error.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the config file, falling back to defaults when it does
// not exist yet.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogInfo("No config file at %s, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	LogInfo("Config loaded from %s (%d stations)", path, len(cfg.Stations))
	return cfg, nil
}

// WriteConfig writes the config as YAML, creating parent directories
func WriteConfig(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

const configSchemaURL = "agribot://config.schema.json"

const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["stations", "schedule", "keys", "timing", "water", "recovery"],
  "properties": {
    "log_encoding": {"enum": ["utf-8", "windows-1252"]},
    "stations": {
      "type": "array",
      "items": {"type": "string", "minLength": 1, "pattern": "^\\S+$"}
    },
    "session_pause": {"type": "integer", "minimum": 0},
    "startup_delay": {"type": "integer", "minimum": 0},
    "plant": {
      "type": "object",
      "properties": {
        "growth_boost": {"type": "number", "minimum": 0}
      }
    },
    "schedule": {
      "type": "object",
      "required": ["periods", "restart_window"],
      "properties": {
        "periods": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["name", "start"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "start": {"$ref": "#/$defs/clock"},
              "carriers": {"enum": ["", "deposit", "withdraw", "none"]}
            }
          }
        },
        "restart_window": {
          "type": "object",
          "properties": {
            "start": {"$ref": "#/$defs/clock"},
            "end": {"$ref": "#/$defs/clock"}
          }
        }
      }
    },
    "keys": {
      "type": "object",
      "required": ["seed", "refill", "crouch", "chat", "escape"],
      "properties": {
        "seed": {"type": "string", "minLength": 1},
        "refill": {"type": "string", "minLength": 1},
        "crouch": {"type": "string", "minLength": 1},
        "chat": {"type": "string", "minLength": 1},
        "escape": {"type": "string", "minLength": 1}
      }
    },
    "inventory": {
      "type": "object",
      "properties": {
        "carrier_slots": {"type": "integer", "minimum": 1, "maximum": 9},
        "seed_slot": {"type": "integer", "minimum": -1, "maximum": 8},
        "carriers": {"type": "integer", "minimum": 1},
        "harvest_slot": {"type": "integer", "minimum": 0}
      }
    },
    "timing": {
      "type": "object",
      "properties": {
        "tick": {"type": "integer", "minimum": 10},
        "panel_timeout": {"type": "integer", "minimum": 100},
        "panel_poll": {"type": "integer", "minimum": 10},
        "stabilization": {"type": "integer", "minimum": 0},
        "connect_timeout": {"type": "integer", "minimum": 1000},
        "teleport_timeout": {"type": "integer", "minimum": 0},
        "pour_interval": {"type": "integer", "minimum": 0},
        "refill_delay": {"type": "integer", "minimum": 0},
        "action_delay": {"type": "integer", "minimum": 0}
      }
    },
    "water": {
      "type": "object",
      "properties": {
        "duration_hours": {"type": "integer", "minimum": 1},
        "margin_minutes": {"type": "integer", "minimum": 0},
        "single_carrier_cap": {"type": "integer", "minimum": 1},
        "multi_carrier_cap": {"type": "integer", "minimum": 1},
        "teleport_distance": {"type": "number", "minimum": 0}
      }
    },
    "recovery": {
      "type": "object",
      "properties": {
        "max_retries": {"type": "integer", "minimum": 0},
        "crash_backoff": {"type": "integer", "minimum": 0},
        "error_backoff": {"type": "integer", "minimum": 0},
        "event_pause": {"type": "integer", "minimum": 0}
      }
    },
    "auto_reply": {
      "type": "object",
      "properties": {
        "triggers": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "replies": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "greet_window": {"type": "integer", "minimum": 0},
        "cooldown": {"type": "integer", "minimum": 0},
        "max_delay": {"type": "integer", "minimum": 0}
      }
    }
  },
  "$defs": {
    "clock": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadConfigSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(configSchemaURL, strings.NewReader(configSchema)); err != nil {
			schemaErr = fmt.Errorf("loading config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(configSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateConfig checks the merged configuration against the schema and
// the cross-field rules the schema cannot express.
func ValidateConfig(cfg *Config) error {
	schema, err := loadConfigSchema()
	if err != nil {
		return err
	}

	// Round-trip through YAML then JSON so the validator sees the same
	// keys the user writes and plain JSON number types.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(js, &value); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := NewScheduleGate(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Plant.Type != "" {
		if _, ok := LookupPlant(cfg.Plant.Type); !ok {
			return fmt.Errorf("invalid config: unknown plant %q", cfg.Plant.Type)
		}
	}
	if s := cfg.Inventory.SeedSlot; s >= 0 && s < cfg.Inventory.CarrierSlots {
		return fmt.Errorf("invalid config: seed_slot %d overlaps the carrier slots", s)
	}
	if cfg.AutoReply.Enabled && strings.TrimSpace(cfg.AutoReply.Player) == "" {
		return errors.New("invalid config: auto_reply needs the player name")
	}
	return nil
}

// ConfigStore holds the live configuration
type ConfigStore struct {
	path string
	cfg  *Config
	mu   sync.RWMutex
}

// NewConfigStore wraps an already loaded config
func NewConfigStore(path string, cfg *Config) *ConfigStore {
	return &ConfigStore{path: path, cfg: cfg}
}

// Snapshot returns a private copy of the current configuration
func (s *ConfigStore) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Stations safely returns the configured station list
func (s *ConfigStore) Stations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cfg.Stations...)
}

// Reload re-reads the config file. The running session keeps the
// snapshot it started with.
func (s *ConfigStore) Reload() error {
	cfg, err := LoadConfig(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	LogInfo("Config reloaded from %s", s.path)
	return nil
}
