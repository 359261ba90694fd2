package motor

import (
	"fmt"

	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/cjeanneret/wiper/internal/hw/gpio"
)

// Config holds the pins of an H-bridge style motor driver.
type Config struct {
	DirAPin   int // HIGH with DirB LOW turns the motor toward the left stop
	DirBPin   int // HIGH with DirA LOW turns the motor toward the right stop
	EnablePin int // active HIGH
}

// Direction is the sense of rotation requested from the motor.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Command is a (direction, enable) pair. It is computed fresh every control
// cycle and never read back from the hardware.
type Command struct {
	Direction Direction
	Enable    bool
}

// Stop is the command that de-energizes the motor.
var Stop = Command{}

// Motor drives the direction and enable lines.
type Motor struct {
	gpio gpio.Driver
	cfg  Config
}

// NewMotor configures the three pins as outputs. The motor is left as-is;
// callers issue Stop if they need a known initial state.
func NewMotor(g gpio.Driver, cfg Config) *Motor {
	_ = g.SetupPin(cfg.DirAPin, gpio.Output)
	_ = g.SetupPin(cfg.DirBPin, gpio.Output)
	_ = g.SetupPin(cfg.EnablePin, gpio.Output)

	return &Motor{
		gpio: g,
		cfg:  cfg,
	}
}

// Drive writes cmd out: two direction writes then enable, or a single
// enable-off write when stopping.
func (m *Motor) Drive(cmd Command) error {
	if !cmd.Enable || cmd.Direction == None {
		return m.Stop()
	}
	switch cmd.Direction {
	case Left:
		return m.Left()
	case Right:
		return m.Right()
	default:
		return fmt.Errorf("unknown direction: %d", cmd.Direction)
	}
}

// Left turns the motor toward the left stop.
func (m *Motor) Left() error {
	debug.Trace("Motor: drive left")
	return m.run(gpio.High, gpio.Low)
}

// Right turns the motor toward the right stop.
func (m *Motor) Right() error {
	debug.Trace("Motor: drive right")
	return m.run(gpio.Low, gpio.High)
}

// Stop disables the motor driver. Direction lines are not touched.
func (m *Motor) Stop() error {
	debug.Trace("Motor: stop")
	return m.gpio.WritePin(m.cfg.EnablePin, gpio.Low)
}

func (m *Motor) run(dirA, dirB gpio.Level) error {
	if err := m.gpio.WritePin(m.cfg.DirAPin, dirA); err != nil {
		// Direction unknown: do not leave the motor running on the old one
		_ = m.Stop()
		return err
	}
	if err := m.gpio.WritePin(m.cfg.DirBPin, dirB); err != nil {
		_ = m.Stop()
		return err
	}
	return m.gpio.WritePin(m.cfg.EnablePin, gpio.High)
}
