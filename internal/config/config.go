package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"moving-head/internal/color"
	"moving-head/internal/fade"
	"moving-head/internal/fixture"
)

// EnvPrefix starts every environment override
const EnvPrefix = "MOVINGHEAD_"

// Config is the complete configuration of the moving head service
type Config struct {
	Log     LogConfig     `yaml:"log"`
	UDP     UDPConfig     `yaml:"udp"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Fixture FixtureConfig `yaml:"fixture"`
	Servo   ServoConfig   `yaml:"servo"`
	Fade    FadeConfig    `yaml:"fade"`
	Journal JournalConfig `yaml:"journal"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty logs to stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// UDPConfig holds the datagram command listener settings
type UDPConfig struct {
	Listen string `yaml:"listen"` // empty disables the listener
}

// HTTPConfig holds the websocket/operator server settings
type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
	// OperatorSecret, when set, requires an HS256 bearer token on operator actions
	OperatorSecret string `yaml:"operator_secret"`
}

// MQTTConfig holds the MQTT bridge settings
type MQTTConfig struct {
	Broker       string `yaml:"broker"` // empty disables the bridge
	ClientID     string `yaml:"client_id"`
	CommandTopic string `yaml:"command_topic"`
	AckTopic     string `yaml:"ack_topic"`
	QoS          int    `yaml:"qos"`
	QueueSize    int    `yaml:"queue_size"` // commands waiting behind a running fade
}

// FixtureConfig selects the hardware driver
type FixtureConfig struct {
	Driver string       `yaml:"driver"`
	Serial SerialConfig `yaml:"serial"`
}

// SerialConfig holds serial bridge settings
type SerialConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Address int    `yaml:"address"`
}

// ServoConfig holds actuator limits
type ServoConfig struct {
	MinAngle    int           `yaml:"min_angle"`
	MaxAngle    int           `yaml:"max_angle"`
	Transit     time.Duration `yaml:"transit"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// FadeConfig holds fade/flicker engine constants
type FadeConfig struct {
	Steps           int           `yaml:"steps"`
	Curve           string        `yaml:"curve"` // default curve for protocol fades
	FlickerInterval time.Duration `yaml:"flicker_interval"`
	// IdleColor is written to the LED at startup, as #rrggbb or #rgb
	IdleColor string `yaml:"idle_color"`
}

// JournalConfig sizes the recent-dispatch journal
type JournalConfig struct {
	Size int `yaml:"size"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		UDP: UDPConfig{
			Listen: ":1234",
		},
		HTTP: HTTPConfig{
			Listen: ":81",
		},
		MQTT: MQTTConfig{
			ClientID:     "moving-head",
			CommandTopic: "moving-head/command",
			AckTopic:     "moving-head/ack",
			QueueSize:    64,
		},
		Fixture: FixtureConfig{
			Driver: fixture.DriverSim,
			Serial: SerialConfig{
				Port:    "/dev/ttyUSB0",
				Baud:    115200,
				Address: 1,
			},
		},
		Servo: ServoConfig{
			MinAngle: 0,
			MaxAngle: 180,
			Transit:  2000 * time.Millisecond,
		},
		Fade: FadeConfig{
			Steps:           fade.DefaultSteps,
			Curve:           fade.EaseInQuart.String(),
			FlickerInterval: fade.DefaultFlickerInterval,
			IdleColor:       color.Off.Hex(),
		},
		Journal: JournalConfig{
			Size: 64,
		},
	}
}

// Load reads path over the defaults (a missing path is an error only when
// it was given explicitly), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads MOVINGHEAD_* variables through lookup
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, v, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, v, err)
		}
		*dst = d
		return nil
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	str("UDP_LISTEN", &cfg.UDP.Listen)
	str("HTTP_LISTEN", &cfg.HTTP.Listen)
	str("OPERATOR_SECRET", &cfg.HTTP.OperatorSecret)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_COMMAND_TOPIC", &cfg.MQTT.CommandTopic)
	str("MQTT_ACK_TOPIC", &cfg.MQTT.AckTopic)
	str("FIXTURE_DRIVER", &cfg.Fixture.Driver)
	str("SERIAL_PORT", &cfg.Fixture.Serial.Port)
	str("FADE_CURVE", &cfg.Fade.Curve)
	str("IDLE_COLOR", &cfg.Fade.IdleColor)

	return errors.Join(
		num("MQTT_QOS", &cfg.MQTT.QoS),
		num("MQTT_QUEUE_SIZE", &cfg.MQTT.QueueSize),
		num("SERIAL_BAUD", &cfg.Fixture.Serial.Baud),
		num("FADE_STEPS", &cfg.Fade.Steps),
		dur("SERVO_TRANSIT", &cfg.Servo.Transit),
		dur("FLICKER_INTERVAL", &cfg.Fade.FlickerInterval),
	)
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level))
	}

	switch c.Fixture.Driver {
	case fixture.DriverSim:
	case fixture.DriverSerial:
		if c.Fixture.Serial.Port == "" {
			errs = append(errs, errors.New("fixture.serial.port is required for the serial driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("fixture.driver %q is not one of %s, %s", c.Fixture.Driver, fixture.DriverSim, fixture.DriverSerial))
	}

	if c.Servo.MinAngle < 0 || c.Servo.MaxAngle <= c.Servo.MinAngle {
		errs = append(errs, fmt.Errorf("servo range [%d,%d] is invalid", c.Servo.MinAngle, c.Servo.MaxAngle))
	}
	if c.Servo.Transit <= 0 {
		errs = append(errs, errors.New("servo.transit must be positive"))
	}
	if c.Servo.MinInterval < 0 {
		errs = append(errs, errors.New("servo.min_interval must not be negative"))
	}

	if c.Fade.Steps < 1 {
		errs = append(errs, errors.New("fade.steps must be at least 1"))
	}
	if _, err := fade.ParseCurve(c.Fade.Curve); err != nil {
		errs = append(errs, fmt.Errorf("fade.curve: %w", err))
	}
	if c.Fade.FlickerInterval <= 0 {
		errs = append(errs, errors.New("fade.flicker_interval must be positive"))
	}
	if _, err := color.ParseHex(c.Fade.IdleColor); err != nil {
		errs = append(errs, fmt.Errorf("fade.idle_color: %w", err))
	}

	if c.MQTT.Broker != "" && c.MQTT.CommandTopic == "" {
		errs = append(errs, errors.New("mqtt.command_topic is required when mqtt.broker is set"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d is not 0, 1 or 2", c.MQTT.QoS))
	}
	if c.MQTT.QueueSize < 1 {
		errs = append(errs, errors.New("mqtt.queue_size must be at least 1"))
	}

	if c.UDP.Listen == "" && c.HTTP.Listen == "" && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("no command transport is enabled"))
	}

	return errors.Join(errs...)
}

// DefaultCurve returns the parsed fade.curve
func (c *Config) DefaultCurve() fade.Curve {
	curve, err := fade.ParseCurve(c.Fade.Curve)
	if err != nil {
		return fade.EaseInQuart
	}
	return curve
}

// IdleColor returns the parsed fade.idle_color
func (c *Config) IdleColor() color.Triple {
	idle, err := color.ParseHex(c.Fade.IdleColor)
	if err != nil {
		return color.Off
	}
	return idle
}
