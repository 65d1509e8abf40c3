package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moving-head/internal/color"
	"moving-head/internal/fade"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":1234", cfg.UDP.Listen)
	assert.Equal(t, ":81", cfg.HTTP.Listen)
	assert.Equal(t, 50, cfg.Fade.Steps)
	assert.Equal(t, fade.EaseInQuart, cfg.DefaultCurve())
	assert.Equal(t, 25*time.Millisecond, cfg.Fade.FlickerInterval)
	assert.Equal(t, 2*time.Second, cfg.Servo.Transit)
	assert.Equal(t, "#000000", cfg.Fade.IdleColor)
	assert.Equal(t, color.Off, cfg.IdleColor())
}

func TestIdleColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fade:\n  idle_color: \"#ff8000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	idle := cfg.IdleColor()
	assert.Equal(t, color.Triple{R: 255, G: 128}, idle)
	assert.Equal(t, "#ff8000", idle.Hex())

	cfg = Default()
	require.NoError(t, applyEnvOverrides(cfg, func(k string) (string, bool) {
		return "#0f0", k == "MOVINGHEAD_IDLE_COLOR"
	}))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, color.Triple{G: 255}, cfg.IdleColor())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
udp:
  listen: "127.0.0.1:4000"
mqtt:
  broker: tcp://broker:1883
  qos: 1
servo:
  transit: 1500ms
  min_interval: 20ms
fade:
  steps: 15
  curve: linear
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:4000", cfg.UDP.Listen)
	assert.Equal(t, ":81", cfg.HTTP.Listen, "unset keys keep defaults")
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, "moving-head/command", cfg.MQTT.CommandTopic)
	assert.Equal(t, 64, cfg.MQTT.QueueSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Servo.Transit)
	assert.Equal(t, 20*time.Millisecond, cfg.Servo.MinInterval)
	assert.Equal(t, 15, cfg.Fade.Steps)
	assert.Equal(t, fade.Linear, cfg.DefaultCurve())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"MOVINGHEAD_UDP_LISTEN":       ":9999",
		"MOVINGHEAD_FIXTURE_DRIVER":   "serial",
		"MOVINGHEAD_SERIAL_PORT":      "/dev/ttyACM0",
		"MOVINGHEAD_FADE_STEPS":       "15",
		"MOVINGHEAD_SERVO_TRANSIT":    "750ms",
		"MOVINGHEAD_OPERATOR_SECRET":  "s3cret",
		"MOVINGHEAD_FLICKER_INTERVAL": "50ms",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnvOverrides(cfg, lookup))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9999", cfg.UDP.Listen)
	assert.Equal(t, "serial", cfg.Fixture.Driver)
	assert.Equal(t, "/dev/ttyACM0", cfg.Fixture.Serial.Port)
	assert.Equal(t, 15, cfg.Fade.Steps)
	assert.Equal(t, 750*time.Millisecond, cfg.Servo.Transit)
	assert.Equal(t, "s3cret", cfg.HTTP.OperatorSecret)
	assert.Equal(t, 50*time.Millisecond, cfg.Fade.FlickerInterval)
}

func TestEnvOverridesRejectGarbage(t *testing.T) {
	lookup := func(k string) (string, bool) {
		switch k {
		case "MOVINGHEAD_FADE_STEPS":
			return "many", true
		case "MOVINGHEAD_SERVO_TRANSIT":
			return "soon", true
		}
		return "", false
	}

	err := applyEnvOverrides(Default(), lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MOVINGHEAD_FADE_STEPS")
	assert.Contains(t, err.Error(), "MOVINGHEAD_SERVO_TRANSIT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"driver", func(c *Config) { c.Fixture.Driver = "dmx" }, "fixture.driver"},
		{"serial port", func(c *Config) { c.Fixture.Driver = "serial"; c.Fixture.Serial.Port = "" }, "fixture.serial.port"},
		{"servo range", func(c *Config) { c.Servo.MaxAngle = 0 }, "servo range"},
		{"transit", func(c *Config) { c.Servo.Transit = 0 }, "servo.transit"},
		{"steps", func(c *Config) { c.Fade.Steps = 0 }, "fade.steps"},
		{"curve", func(c *Config) { c.Fade.Curve = "bounce" }, "fade.curve"},
		{"flicker", func(c *Config) { c.Fade.FlickerInterval = 0 }, "fade.flicker_interval"},
		{"idle color", func(c *Config) { c.Fade.IdleColor = "amber" }, "fade.idle_color"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"mqtt queue", func(c *Config) { c.MQTT.QueueSize = 0 }, "mqtt.queue_size"},
		{"mqtt topic", func(c *Config) { c.MQTT.Broker = "tcp://b:1883"; c.MQTT.CommandTopic = "" }, "mqtt.command_topic"},
		{"no transport", func(c *Config) { c.UDP.Listen = ""; c.HTTP.Listen = "" }, "no command transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
