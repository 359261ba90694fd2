package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// BusConfig describes the command bus between the joystick node and the wiper.
type BusConfig struct {
	PublishAddr string `yaml:"publish_addr"` // destination of published vectors, e.g. "255.255.255.255:5555"
	ListenAddr  string `yaml:"listen_addr"`  // subscriber bind address, e.g. ":5555"
	QueueSize   int    `yaml:"queue_size"`   // pending messages kept by the subscriber
}

// JoystickConfig locates the input device.
type JoystickConfig struct {
	Device string `yaml:"device"` // e.g. "/dev/input/js0"
}

// ButtonsConfig maps target flags to button-vector indices (1-3).
type ButtonsConfig struct {
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
	Middle int `yaml:"middle"`
}

// PinsConfig holds the limit switch inputs and motor driver outputs.
type PinsConfig struct {
	LeftSwitch   int `yaml:"left_switch"`
	MiddleSwitch int `yaml:"middle_switch"`
	RightSwitch  int `yaml:"right_switch"`
	Enable       int `yaml:"enable"`
	DirA         int `yaml:"dir_a"` // HIGH drives left
	DirB         int `yaml:"dir_b"` // HIGH drives right
}

// PinAccessConfig selects how pins are reached.
// Type is one of "stream", "serial", "rpio" or "mock".
type PinAccessConfig struct {
	Type          string `yaml:"type"`
	Device        string `yaml:"device"`          // stream device or serial port
	BaudRate      int    `yaml:"baud_rate"`       // serial only
	SettleUs      int    `yaml:"settle_us"`       // delay between read request and response
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // serial only, 0 = block
	Pull          string `yaml:"pull"`            // rpio only: "up", "down" or ""
}

// ControlConfig tunes the position controller.
type ControlConfig struct {
	LoopMs      int    `yaml:"loop_ms"`      // sleep between control cycles
	DefaultSide string `yaml:"default_side"` // "left" or "right" before any end stop was seen
	ReadFailure string `yaml:"read_failure"` // "fail_open" or "fail_safe"
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	WebPort    int `yaml:"web_port"`    // status server port for the wiper, 0 = disabled
}

// Config aggregates all application configuration.
type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Joystick  JoystickConfig  `yaml:"joystick"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Pins      PinsConfig      `yaml:"pins"`
	PinAccess PinAccessConfig `yaml:"pin_access"`
	Control   ControlConfig   `yaml:"control"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Default returns the configuration of the original wiring.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			PublishAddr: "255.255.255.255:5555",
			ListenAddr:  ":5555",
			QueueSize:   16,
		},
		Joystick: JoystickConfig{Device: "/dev/input/js0"},
		Buttons:  ButtonsConfig{Left: 1, Right: 2, Middle: 3},
		Pins: PinsConfig{
			LeftSwitch:   23,
			MiddleSwitch: 22,
			RightSwitch:  24,
			Enable:       2,
			DirA:         3,
			DirB:         4,
		},
		PinAccess: PinAccessConfig{
			Type:     "stream",
			Device:   "/dev/gpio_stream",
			BaudRate: 115200,
			SettleUs: 100,
		},
		Control: ControlConfig{
			LoopMs:      10,
			DefaultSide: "left",
			ReadFailure: "fail_open",
		},
		Defaults: DefaultsConfig{DebugLevel: 1},
	}
}

// ValidateConfigPath accepts only .yaml files located in a "configs" directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration. Missing keys keep
// the values from Default.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations, filling in defaults for zero
// values where zero is meaningless.
func (c *Config) Validate() error {
	if c.Bus.PublishAddr == "" {
		return fmt.Errorf("bus.publish_addr is required")
	}
	if c.Bus.ListenAddr == "" {
		return fmt.Errorf("bus.listen_addr is required")
	}
	if c.Bus.QueueSize <= 0 {
		c.Bus.QueueSize = 16
	}

	b := c.Buttons
	for name, idx := range map[string]int{"left": b.Left, "right": b.Right, "middle": b.Middle} {
		if idx < 1 || idx > 3 {
			return fmt.Errorf("buttons.%s must be between 1 and 3, got %d", name, idx)
		}
	}
	if b.Left == b.Right || b.Left == b.Middle || b.Right == b.Middle {
		return fmt.Errorf("buttons must use distinct indices, got left=%d right=%d middle=%d", b.Left, b.Right, b.Middle)
	}

	p := c.Pins
	pins := map[string]int{
		"left_switch":   p.LeftSwitch,
		"middle_switch": p.MiddleSwitch,
		"right_switch":  p.RightSwitch,
		"enable":        p.Enable,
		"dir_a":         p.DirA,
		"dir_b":         p.DirB,
	}
	used := make(map[int]string, len(pins))
	for name, pin := range pins {
		if pin < 0 || pin > 255 {
			return fmt.Errorf("pins.%s must be between 0 and 255, got %d", name, pin)
		}
		if other, dup := used[pin]; dup {
			return fmt.Errorf("pins.%s and pins.%s both use pin %d", other, name, pin)
		}
		used[pin] = name
	}

	switch c.PinAccess.Type {
	case "stream", "serial":
		if c.PinAccess.Device == "" {
			return fmt.Errorf("pin_access.device is required for type %q", c.PinAccess.Type)
		}
	case "rpio", "mock":
	default:
		return fmt.Errorf("pin_access.type must be stream, serial, rpio or mock, got %q", c.PinAccess.Type)
	}
	if c.PinAccess.Type == "serial" && c.PinAccess.BaudRate <= 0 {
		c.PinAccess.BaudRate = 115200
	}
	if c.PinAccess.SettleUs < 0 {
		return fmt.Errorf("pin_access.settle_us must be >= 0, got %d", c.PinAccess.SettleUs)
	}
	if c.PinAccess.ReadTimeoutMs < 0 {
		return fmt.Errorf("pin_access.read_timeout_ms must be >= 0, got %d", c.PinAccess.ReadTimeoutMs)
	}
	switch c.PinAccess.Pull {
	case "", "up", "down":
	default:
		return fmt.Errorf("pin_access.pull must be up, down or empty, got %q", c.PinAccess.Pull)
	}

	if c.Control.LoopMs <= 0 {
		return fmt.Errorf("control.loop_ms must be > 0, got %d", c.Control.LoopMs)
	}
	switch c.Control.DefaultSide {
	case "left", "right":
	default:
		return fmt.Errorf("control.default_side must be left or right, got %q", c.Control.DefaultSide)
	}
	switch c.Control.ReadFailure {
	case "fail_open", "fail_safe":
	default:
		return fmt.Errorf("control.read_failure must be fail_open or fail_safe, got %q", c.Control.ReadFailure)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Defaults.WebPort < 0 || c.Defaults.WebPort > 65535 {
		return fmt.Errorf("defaults.web_port must be between 0 and 65535, got %d", c.Defaults.WebPort)
	}
	return nil
}

// LoopInterval returns the sleep between two control cycles.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Control.LoopMs) * time.Millisecond
}

// SettleDelay returns the wait between a pin read request and its answer.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.PinAccess.SettleUs) * time.Microsecond
}

// ReadTimeout returns the serial read timeout (0 = block).
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.PinAccess.ReadTimeoutMs) * time.Millisecond
}
