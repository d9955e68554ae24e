package main

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ringmenu"
)

// Config is the top-level YAML configuration for the ringmenud daemon.
//
// The config file is the primary configuration surface; flags exist for small
// overrides and for environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Menus declares the rotary selectors the daemon hosts.
	Menus []MenuConfig `yaml:"menus"`

	// Wheel configures the shared input normalizer defaults. Each menu owns
	// its own accumulator but shares these tuning values.
	Wheel WheelFileConfig `yaml:"wheel"`

	// Input lists optional Linux input devices whose wheel/dial axes drive
	// the default menu.
	Input InputConfig `yaml:"input"`

	// WS configures the renderer-facing WebSocket server.
	WS WSConfig `yaml:"ws"`

	// IPC configures the Unix-socket event interface.
	IPC IPCConfig `yaml:"ipc"`

	// UpdateHz is the auto-repair sweep cadence.
	UpdateHz int `yaml:"update_hz"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// MenuConfig declares one rotary selector.
type MenuConfig struct {
	ID           string `yaml:"id"`
	ItemCount    int    `yaml:"item_count"`
	InitialIndex int    `yaml:"initial_index"`

	// Animation durations suggested to the renderer. Scroll nudges should be
	// snappier than click-selects.
	SelectDurationMS int `yaml:"select_duration_ms"`
	ScrollDurationMS int `yaml:"scroll_duration_ms"`

	// MaxHoldMS is the guard auto-repair timeout.
	MaxHoldMS int `yaml:"max_hold_ms"`

	// FrontAngleDeg is the viewing reference angle for highlight updates.
	FrontAngleDeg float64 `yaml:"front_angle_deg,omitempty"`
}

// WheelFileConfig is the user-facing normalizer configuration as represented
// in YAML. It maps 1:1 to ringmenu.WheelConfig.
type WheelFileConfig struct {
	Sensitivity float64 `yaml:"sensitivity"`
	ThresholdPx float64 `yaml:"threshold_px"`
	MaxBurst    int     `yaml:"max_burst"`
	LinePx      float64 `yaml:"line_px"`
	PagePx      float64 `yaml:"page_px"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"` // evdev devices to monitor

	// Menu is the menu id driven by local devices. Defaults to the first
	// configured menu.
	Menu string `yaml:"menu,omitempty"`
}

type WSConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Menus: []MenuConfig{
			{
				ID:               "main",
				ItemCount:        defaultItemCount,
				InitialIndex:     0,
				SelectDurationMS: defaultSelectDurationMS,
				ScrollDurationMS: defaultScrollDurationMS,
				MaxHoldMS:        defaultMaxHoldMS,
			},
		},
		Wheel: WheelFileConfig{
			Sensitivity: ringmenu.DefaultSensitivity,
			ThresholdPx: ringmenu.DefaultThresholdPx,
			MaxBurst:    ringmenu.DefaultMaxBurst,
			LinePx:      ringmenu.DefaultLinePx,
			PagePx:      ringmenu.DefaultPagePx,
		},
		Input: InputConfig{},
		WS: WSConfig{
			Addr: defaultWSAddr,
			Path: defaultWSPath,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		UpdateHz: defaultUpdateHz,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Flags should pass pointers; each override is only applied if non-nil.
type FlagOverrides struct {
	WSAddr        *string
	WSPath        *string
	IPCSocketPath *string

	WheelSensitivity *float64
	WheelThresholdPx *float64
	WheelMaxBurst    *int

	InputDevice *string

	UpdateHz *int
	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is
// ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.WSAddr != nil {
		cfg.WS.Addr = *o.WSAddr
	}
	if o.WSPath != nil {
		cfg.WS.Path = *o.WSPath
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WheelSensitivity != nil {
		cfg.Wheel.Sensitivity = *o.WheelSensitivity
	}
	if o.WheelThresholdPx != nil {
		cfg.Wheel.ThresholdPx = *o.WheelThresholdPx
	}
	if o.WheelMaxBurst != nil {
		cfg.Wheel.MaxBurst = *o.WheelMaxBurst
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.UpdateHz != nil {
		cfg.UpdateHz = *o.UpdateHz
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if len(c.Menus) == 0 {
		return errors.New("menus must not be empty")
	}

	seen := make(map[string]bool, len(c.Menus))
	for i, m := range c.Menus {
		if m.ID == "" {
			return fmt.Errorf("menus[%d].id must not be empty", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate menu id %q", m.ID)
		}
		seen[m.ID] = true

		if m.ItemCount < 1 {
			return fmt.Errorf("menus[%q].item_count must be >= 1", m.ID)
		}
		if m.InitialIndex < 0 || m.InitialIndex >= m.ItemCount {
			return fmt.Errorf("menus[%q].initial_index must be in [0,%d)", m.ID, m.ItemCount)
		}
		if m.SelectDurationMS < 0 || m.ScrollDurationMS < 0 {
			return fmt.Errorf("menus[%q] durations must be >= 0", m.ID)
		}
		if m.MaxHoldMS < 0 {
			return fmt.Errorf("menus[%q].max_hold_ms must be >= 0", m.ID)
		}
	}

	// Zero means "use the default" (resolved by the normalizer constructor);
	// only negative values are rejected here.
	if c.Wheel.Sensitivity < 0 {
		return errors.New("wheel.sensitivity must not be negative")
	}
	if c.Wheel.ThresholdPx < 0 {
		return errors.New("wheel.threshold_px must not be negative")
	}
	if c.Wheel.MaxBurst < 0 {
		return errors.New("wheel.max_burst must not be negative")
	}

	if c.Input.Menu != "" && !seen[c.Input.Menu] {
		return fmt.Errorf("input.menu %q does not name a configured menu", c.Input.Menu)
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	if c.WS.Addr == "" {
		return errors.New("ws.addr must not be empty")
	}
	if c.WS.Path == "" || c.WS.Path[0] != '/' {
		return errors.New("ws.path must start with '/'")
	}
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.UpdateHz <= 0 || c.UpdateHz > 1000 {
		return errors.New("update_hz must be between 1 and 1000")
	}
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToWheelConfig converts the file config into the normalizer config.
func (c *Config) ToWheelConfig() ringmenu.WheelConfig {
	return ringmenu.WheelConfig{
		Sensitivity: c.Wheel.Sensitivity,
		ThresholdPx: c.Wheel.ThresholdPx,
		MaxBurst:    c.Wheel.MaxBurst,
		LinePx:      c.Wheel.LinePx,
		PagePx:      c.Wheel.PagePx,
	}
}

// ToEngineConfig converts one menu declaration into an engine config.
// The emit callback is wired by the daemon, not here.
func (m MenuConfig) ToEngineConfig() ringmenu.EngineConfig {
	return ringmenu.EngineConfig{
		ItemCount:      m.ItemCount,
		InitialIndex:   m.InitialIndex,
		SelectDuration: time.Duration(m.SelectDurationMS) * time.Millisecond,
		ScrollDuration: time.Duration(m.ScrollDurationMS) * time.Millisecond,
		MaxHold:        time.Duration(m.MaxHoldMS) * time.Millisecond,
		FrontAngle:     m.FrontAngleDeg * math.Pi / 180,
	}
}

// inputMenuID resolves which menu local input devices drive.
func (c *Config) inputMenuID() string {
	if c.Input.Menu != "" {
		return c.Input.Menu
	}
	return c.Menus[0].ID
}
