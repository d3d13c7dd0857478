// Package model defines shared configuration structures used to initialize the controller
// and the vehicle receiver.
package model

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig.
const (
	DefaultHost      = "192.168.1.1" // vehicle access point
	DefaultPort      = 4210
	DefaultQueueSize = 64
	DefaultAppAddr   = ":8080"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Transmitter TransmitterConfig `yaml:"transmitter"`
	Protocol    ProtocolConfig    `yaml:"protocol"`
	Drive       DriveConfig       `yaml:"drive"`
	Gate        GateConfig        `yaml:"gate"`
	App         AppConfig         `yaml:"app"`
	Vehicle     VehicleConfig     `yaml:"vehicle"`
	Debug       bool              `yaml:"debug"`
}

// TransmitterConfig defines the outbound datagram endpoint.
type TransmitterConfig struct {
	Host      string `yaml:"host"` // destination host; empty leaves the transmitter unconfigured
	Port      int    `yaml:"port"`
	QueueSize int    `yaml:"queue_size"`
	Workers   int    `yaml:"workers"`
}

// ProtocolConfig selects which wire revisions are enabled.
type ProtocolConfig struct {
	Structured     bool `yaml:"structured"`      // joystick drives as key/value payloads
	Opcode         bool `yaml:"opcode"`          // buttons and mode switches as single bytes
	AlgorithmField bool `yaml:"algorithm_field"` // include driving_algorithm in structured payloads
}

// DriveConfig tunes the differential mapping.
type DriveConfig struct {
	MaxSpeed int `yaml:"max_speed"`
}

// GateConfig configures the network attachment readiness gate.
type GateConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Interface        string `yaml:"interface"` // e.g. wlan0
	TimeoutMs        int    `yaml:"timeout_ms"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms"`
	DropUntilReady   bool   `yaml:"drop_until_ready"`
}

// AppConfig defines the HTTP/websocket surface used by the operator UI.
type AppConfig struct {
	Addr string `yaml:"addr"`
}

// VehicleConfig defines the vehicle-side receiver.
type VehicleConfig struct {
	Listen       string `yaml:"listen"`        // e.g. ":4210"
	SerialDevice string `yaml:"serial_device"` // motor controller; empty logs only
	SerialBaud   int    `yaml:"serial_baud"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Transmitter: TransmitterConfig{
			Host:      DefaultHost,
			Port:      DefaultPort,
			QueueSize: DefaultQueueSize,
			Workers:   1,
		},
		Protocol: ProtocolConfig{Structured: true, Opcode: true, AlgorithmField: true},
		Drive:    DriveConfig{MaxSpeed: MaxMotorSpeed},
		Gate: GateConfig{
			TimeoutMs:        30000,
			InitialBackoffMs: 500,
			MaxBackoffMs:     10000,
		},
		App:     AppConfig{Addr: DefaultAppAddr},
		Vehicle: VehicleConfig{Listen: fmt.Sprintf(":%d", DefaultPort), SerialBaud: 9600},
	}
}

// LoadConfig reads the YAML file at path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Transmitter.Port <= 0 || c.Transmitter.Port > 65535 {
		return fmt.Errorf("transmitter.port %d out of range", c.Transmitter.Port)
	}
	if c.Transmitter.QueueSize <= 0 {
		return errors.New("transmitter.queue_size must be positive")
	}
	if c.Transmitter.Workers <= 0 {
		return errors.New("transmitter.workers must be positive")
	}
	if !c.Protocol.Structured && !c.Protocol.Opcode {
		return errors.New("protocol: at least one of structured/opcode must be enabled")
	}
	if c.Drive.MaxSpeed <= 0 || c.Drive.MaxSpeed > MaxMotorSpeed {
		return fmt.Errorf("drive.max_speed %d out of range (0,%d]", c.Drive.MaxSpeed, MaxMotorSpeed)
	}
	if c.Gate.Enabled && c.Gate.Interface == "" {
		return errors.New("gate.interface is required when the gate is enabled")
	}
	return nil
}
