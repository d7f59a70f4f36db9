package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorbridge/bridge-go/pkg/safety"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, "auto", s.Serial.Port)
	assert.Equal(t, 115200, s.Serial.Baud)
	assert.Equal(t, 4, s.Servos.Count)
	assert.Equal(t, 90, s.Servos.CenterDeg)
	assert.True(t, s.Watchdog.Enabled)
	assert.False(t, s.Caps.Enforce)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyACM0
  baud: 57600
servos:
  count: 2
  ranges:
    1: {min: 20, max: 160}
  safe_pose:
    1: 45
safety:
  slew_rate_dps: 120
  max_cmd_hz: 20
  limit_mode: sleep
caps:
  enforce: true
`)

	s, err := Load(path)
	require.NoError(t, err)

	// Overridden values take effect.
	assert.Equal(t, "/dev/ttyACM0", s.Serial.Port)
	assert.Equal(t, 57600, s.Serial.Baud)
	assert.Equal(t, 2, s.Servos.Count)
	assert.Equal(t, RangeSettings{Min: 20, Max: 160}, s.Servos.Ranges[1])
	assert.Equal(t, 45, s.Servos.SafePose[1])
	assert.True(t, s.Caps.Enforce)

	// Untouched sections keep their defaults.
	assert.Equal(t, 2500, s.Serial.TimeoutMs)
	assert.Equal(t, 90, s.Servos.CenterDeg)
	assert.True(t, s.Watchdog.Enabled)
	assert.Equal(t, 8280, s.Discovery.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "serial: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
servos:
  count: 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servos.count")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"EmptyPort", func(s *Settings) { s.Serial.Port = "" }, "serial.port"},
		{"ZeroBaud", func(s *Settings) { s.Serial.Baud = 0 }, "serial.baud"},
		{"NoServos", func(s *Settings) { s.Servos.Count = 0 }, "servos.count"},
		{"InvertedRange", func(s *Settings) { s.Servos.Range = RangeSettings{Min: 100, Max: 50} }, "servos.range"},
		{"RangeForUnknownServo", func(s *Settings) {
			s.Servos.Ranges = map[int]RangeSettings{9: {Min: 0, Max: 180}}
		}, "servos.ranges"},
		{"InvertedPerServoRange", func(s *Settings) {
			s.Servos.Ranges = map[int]RangeSettings{1: {Min: 90, Max: 10}}
		}, "servos.ranges[1]"},
		{"SafePoseForUnknownServo", func(s *Settings) {
			s.Servos.SafePose = map[int]int{9: 45}
		}, "servos.safe_pose"},
		{"NegativeSlewRate", func(s *Settings) { s.Safety.SlewRateDPS = -1 }, "slew_rate_dps"},
		{"NegativeCmdHz", func(s *Settings) { s.Safety.MaxCmdHz = -1 }, "max_cmd_hz"},
		{"BadLimitMode", func(s *Settings) { s.Safety.LimitMode = "explode" }, "limit_mode"},
		{"WatchdogNoTick", func(s *Settings) { s.Watchdog.TickMs = 0 }, "watchdog.tick_ms"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Default()
			tc.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSafetyConfig(t *testing.T) {
	s := Default()
	s.Servos.Count = 3
	s.Servos.Range = RangeSettings{Min: 10, Max: 170}
	s.Servos.Ranges = map[int]RangeSettings{2: {Min: 45, Max: 135}}
	s.Servos.SafePose = map[int]int{1: 30}
	s.Safety.SlewRateDPS = 90
	s.Safety.MaxCmdHz = 10
	s.Safety.LimitMode = "sleep"

	cfg, err := s.SafetyConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.ServoCount)
	assert.Equal(t, safety.Range{Min: 10, Max: 170}, cfg.DefaultRange)
	assert.Equal(t, 90, cfg.CenterDeg)
	assert.Equal(t, safety.Range{Min: 45, Max: 135}, cfg.Ranges[2])
	assert.Equal(t, map[int]int{1: 30}, cfg.SafePose)
	assert.Equal(t, 90.0, cfg.SlewRateDPS)
	assert.Equal(t, 10.0, cfg.MaxCmdHz)
	assert.Equal(t, safety.LimitSleep, cfg.Mode)
}

func TestSafetyConfigBadMode(t *testing.T) {
	s := Default()
	s.Safety.LimitMode = "bogus"
	_, err := s.SafetyConfig()
	require.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	s := Default()
	assert.Equal(t, 2500*time.Millisecond, s.SerialTimeout())
	assert.Equal(t, 2200*time.Millisecond, s.OpenSettle())
}
