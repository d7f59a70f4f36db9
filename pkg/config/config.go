// Package config loads bridge settings from YAML.
//
// All durations are expressed in milliseconds in the file and converted
// on load. Defaults() returns a fully usable configuration for a stock
// two-motor, four-servo device; Load overlays a YAML file on top of the
// defaults, so partial files are fine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/motorbridge/bridge-go/pkg/safety"
)

// Settings is the root configuration.
type Settings struct {
	Serial    SerialSettings    `yaml:"serial"`
	Servos    ServoSettings     `yaml:"servos"`
	Safety    SafetySettings    `yaml:"safety"`
	Watchdog  WatchdogSettings  `yaml:"watchdog"`
	Caps      CapsSettings      `yaml:"caps"`
	Log       LogSettings       `yaml:"log"`
	Discovery DiscoverySettings `yaml:"discovery"`
}

// SerialSettings configures the serial channel.
type SerialSettings struct {
	// Port is the device path, or "auto" to pick the most likely USB
	// serial port.
	Port string `yaml:"port"`

	Baud         int `yaml:"baud"`
	TimeoutMs    int `yaml:"timeout_ms"`
	OpenSettleMs int `yaml:"open_settle_ms"`
}

// ServoSettings describes the servo bank.
type ServoSettings struct {
	Count     int           `yaml:"count"`
	CenterDeg int           `yaml:"center_deg"`
	Range     RangeSettings `yaml:"range"`

	// Ranges overrides Range per servo ID.
	Ranges map[int]RangeSettings `yaml:"ranges"`

	// SafePose overrides the center pose per servo ID.
	SafePose map[int]int `yaml:"safe_pose"`

	// PowerMode selects the bootstrap power source: "arduino" or
	// "external". Empty skips the power bootstrap.
	PowerMode string `yaml:"power_mode"`
}

// RangeSettings is an inclusive degree range.
type RangeSettings struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// SafetySettings configures rate and slew limiting.
type SafetySettings struct {
	// SlewRateDPS caps servo movement in degrees per second. Zero
	// disables slew limiting.
	SlewRateDPS float64 `yaml:"slew_rate_dps"`

	// MaxCmdHz caps per-servo command frequency. Zero disables.
	MaxCmdHz float64 `yaml:"max_cmd_hz"`

	// LimitMode is "reject" or "sleep".
	LimitMode string `yaml:"limit_mode"`
}

// WatchdogSettings configures the idle watchdog.
type WatchdogSettings struct {
	Enabled     bool `yaml:"enabled"`
	TickMs      int  `yaml:"tick_ms"`
	MotorIdleMs int  `yaml:"motor_idle_ms"`
	ServoIdleMs int  `yaml:"servo_idle_ms"`
	ServoSafe   bool `yaml:"servo_safe"`
}

// CapsSettings configures the capability cache.
type CapsSettings struct {
	// Enforce rejects commands absent from the probed command list.
	Enforce bool `yaml:"enforce"`

	// ReprobeIntervalMs re-probes capabilities periodically. Zero
	// disables re-probing.
	ReprobeIntervalMs int `yaml:"reprobe_interval_ms"`

	ProbeTimeoutMs int `yaml:"probe_timeout_ms"`
}

// LogSettings configures event logging.
type LogSettings struct {
	// File receives CBOR-encoded events. Empty disables file logging.
	File string `yaml:"file"`

	// Console mirrors events to structured console output.
	Console bool `yaml:"console"`
}

// DiscoverySettings configures mDNS advertisement.
type DiscoverySettings struct {
	Enabled      bool   `yaml:"enabled"`
	InstanceName string `yaml:"instance_name"`
	Port         int    `yaml:"port"`
}

// Default returns settings for a stock device: two motors, four servos,
// full 0-180 range, watchdog on, enforcement off.
func Default() *Settings {
	return &Settings{
		Serial: SerialSettings{
			Port:         "auto",
			Baud:         115200,
			TimeoutMs:    2500,
			OpenSettleMs: 2200,
		},
		Servos: ServoSettings{
			Count:     4,
			CenterDeg: 90,
			Range:     RangeSettings{Min: 0, Max: 180},
			PowerMode: "arduino",
		},
		Safety: SafetySettings{
			SlewRateDPS: 0,
			MaxCmdHz:    0,
			LimitMode:   "reject",
		},
		Watchdog: WatchdogSettings{
			Enabled:     true,
			TickMs:      1000,
			MotorIdleMs: 3000,
			ServoIdleMs: 10000,
			ServoSafe:   false,
		},
		Caps: CapsSettings{
			Enforce:        false,
			ProbeTimeoutMs: 2500,
		},
		Discovery: DiscoverySettings{
			InstanceName: "motorbridge",
			Port:         8280,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	if s.Serial.Port == "" {
		return fmt.Errorf("serial.port must be set (use \"auto\" for discovery)")
	}
	if s.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", s.Serial.Baud)
	}
	if s.Servos.Count < 1 {
		return fmt.Errorf("servos.count must be at least 1, got %d", s.Servos.Count)
	}
	if s.Servos.Range.Min > s.Servos.Range.Max {
		return fmt.Errorf("servos.range: min %d exceeds max %d", s.Servos.Range.Min, s.Servos.Range.Max)
	}
	for id, r := range s.Servos.Ranges {
		if id < 1 || id > s.Servos.Count {
			return fmt.Errorf("servos.ranges: servo %d out of range 1..%d", id, s.Servos.Count)
		}
		if r.Min > r.Max {
			return fmt.Errorf("servos.ranges[%d]: min %d exceeds max %d", id, r.Min, r.Max)
		}
	}
	for id := range s.Servos.SafePose {
		if id < 1 || id > s.Servos.Count {
			return fmt.Errorf("servos.safe_pose: servo %d out of range 1..%d", id, s.Servos.Count)
		}
	}
	if s.Safety.SlewRateDPS < 0 {
		return fmt.Errorf("safety.slew_rate_dps must not be negative")
	}
	if s.Safety.MaxCmdHz < 0 {
		return fmt.Errorf("safety.max_cmd_hz must not be negative")
	}
	if _, err := safety.ParseLimitMode(s.Safety.LimitMode); err != nil {
		return fmt.Errorf("safety.limit_mode: %w", err)
	}
	if s.Watchdog.Enabled && s.Watchdog.TickMs <= 0 {
		return fmt.Errorf("watchdog.tick_ms must be positive when the watchdog is enabled")
	}
	return nil
}

// SafetyConfig converts the servo and safety sections into a safety
// engine configuration.
func (s *Settings) SafetyConfig() (safety.Config, error) {
	mode, err := safety.ParseLimitMode(s.Safety.LimitMode)
	if err != nil {
		return safety.Config{}, err
	}

	cfg := safety.Config{
		ServoCount:   s.Servos.Count,
		DefaultRange: safety.Range{Min: s.Servos.Range.Min, Max: s.Servos.Range.Max},
		CenterDeg:    s.Servos.CenterDeg,
		SlewRateDPS:  s.Safety.SlewRateDPS,
		MaxCmdHz:     s.Safety.MaxCmdHz,
		Mode:         mode,
	}
	if len(s.Servos.Ranges) > 0 {
		cfg.Ranges = make(map[int]safety.Range, len(s.Servos.Ranges))
		for id, r := range s.Servos.Ranges {
			cfg.Ranges[id] = safety.Range{Min: r.Min, Max: r.Max}
		}
	}
	if len(s.Servos.SafePose) > 0 {
		cfg.SafePose = make(map[int]int, len(s.Servos.SafePose))
		for id, deg := range s.Servos.SafePose {
			cfg.SafePose[id] = deg
		}
	}
	return cfg, nil
}

// SerialTimeout returns the exchange timeout as a duration.
func (s *Settings) SerialTimeout() time.Duration {
	return time.Duration(s.Serial.TimeoutMs) * time.Millisecond
}

// OpenSettle returns the post-open settle delay as a duration.
func (s *Settings) OpenSettle() time.Duration {
	return time.Duration(s.Serial.OpenSettleMs) * time.Millisecond
}
