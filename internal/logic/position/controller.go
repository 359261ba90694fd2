package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/wiper/internal/bus"
	"github.com/cjeanneret/wiper/internal/command"
	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/cjeanneret/wiper/internal/hw/gpio"
	"github.com/cjeanneret/wiper/internal/hw/motor"
)

// DefaultInterval is the pause between two control cycles.
const DefaultInterval = 10 * time.Millisecond

// Pins holds the limit switch inputs.
type Pins struct {
	LeftSwitch   int
	MiddleSwitch int
	RightSwitch  int
}

// Config holds the controller settings.
type Config struct {
	Pins        Pins
	Buttons     command.ButtonMap
	Interval    time.Duration // fixed sleep after each cycle
	DefaultSide Side          // LastKnownSide before any end stop was seen
	ReadPolicy  ReadPolicy
}

// Controller moves the carriage between the left, middle and right stops.
// It owns all of its state and is driven by a single goroutine; only the
// published Snapshot is shared.
type Controller struct {
	pins  gpio.Driver
	motor *motor.Motor
	sub   bus.Subscriber
	cfg   Config

	state    State
	lastSide Side
	cmd      command.Vector
	reading  Reading
	output   motor.Command
	cycles   uint64

	mu   sync.RWMutex
	snap Snapshot
}

// NewController creates a controller in the Idle state.
func NewController(pins gpio.Driver, m *motor.Motor, sub bus.Subscriber, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Buttons == (command.ButtonMap{}) {
		cfg.Buttons = command.DefaultButtonMap
	}

	_ = pins.SetupPin(cfg.Pins.LeftSwitch, gpio.Input)
	_ = pins.SetupPin(cfg.Pins.MiddleSwitch, gpio.Input)
	_ = pins.SetupPin(cfg.Pins.RightSwitch, gpio.Input)

	c := &Controller{
		pins:     pins,
		motor:    m,
		sub:      sub,
		cfg:      cfg,
		state:    Idle,
		lastSide: cfg.DefaultSide,
	}
	c.publish()
	return c
}

// State returns the current state machine state.
func (c *Controller) State() State {
	return c.state
}

// LastSide returns the last end stop seen (or the configured default).
func (c *Controller) LastSide() Side {
	return c.lastSide
}

// Step runs one control cycle and returns the motor command it issued:
// ingest at most one bus message, select a target from it, sample the
// switches, update the side memory, evaluate the state machine and write
// the motor outputs. I/O failures are logged and never returned.
func (c *Controller) Step() motor.Command {
	c.cycles++

	if c.ingest() {
		c.selectTarget()
	}

	var seen Reading
	c.reading, seen = c.sample()

	// Side memory only follows switches that actually answered asserted.
	if seen.Left {
		c.lastSide = SideLeft
	}
	if seen.Right {
		c.lastSide = SideRight
	}

	c.output = c.evaluate()
	if err := c.motor.Drive(c.output); err != nil {
		debug.Error(fmt.Errorf("motor %s: %w", c.output.Direction, err))
	}

	c.publish()
	return c.output
}

// Run executes Step at a fixed cadence until ctx is cancelled. The motor is
// stopped on the way out.
func (c *Controller) Run(ctx context.Context) error {
	debug.Info("Controller running (interval %v, default side %s, %s)",
		c.cfg.Interval, c.cfg.DefaultSide, c.cfg.ReadPolicy)

	timer := time.NewTimer(c.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.halt()
			return ctx.Err()
		default:
		}

		c.Step()

		timer.Reset(c.cfg.Interval)
		select {
		case <-ctx.Done():
			c.halt()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Controller) halt() {
	debug.Info("Controller stopping, motor off")
	if err := c.motor.Stop(); err != nil {
		debug.Error(fmt.Errorf("final motor stop: %w", err))
	}
}

// ingest adopts the next pending vector, if any. Payloads of the wrong size
// are ignored and the previous snapshot is kept.
func (c *Controller) ingest() bool {
	payload, ok := c.sub.TryReceive()
	if !ok {
		return false
	}
	v, ok := command.Decode(payload)
	if !ok {
		debug.Verbose("Ignoring %d-byte bus message", len(payload))
		return false
	}
	c.cmd = v
	debug.Vector("Received", v.Bytes())
	return true
}

// selectTarget applies the directive of the freshly adopted vector. A
// vector without any target flag leaves the current state untouched.
func (c *Controller) selectTarget() {
	target, ok := c.cfg.Buttons.Target(c.cmd)
	if !ok {
		return
	}
	next := stateFor(target)
	if next != c.state {
		debug.Target(target.String())
	}
	c.state = next
}

// sample reads the switches in left, middle, right order. reading has the
// read policy applied to failed reads; seen only holds switches whose read
// succeeded and reported asserted.
func (c *Controller) sample() (reading, seen Reading) {
	reading.Left, seen.Left = c.readSwitch(c.cfg.Pins.LeftSwitch)
	reading.Middle, seen.Middle = c.readSwitch(c.cfg.Pins.MiddleSwitch)
	reading.Right, seen.Right = c.readSwitch(c.cfg.Pins.RightSwitch)
	return reading, seen
}

func (c *Controller) readSwitch(pin int) (asserted, seen bool) {
	level, err := c.pins.ReadPin(pin)
	if err != nil {
		debug.Error(fmt.Errorf("switch pin %d: %w", pin, err))
		return c.cfg.ReadPolicy == FailSafe, false
	}
	return level == gpio.High, level == gpio.High
}

// evaluate advances the state machine for the current reading. Reaching
// the target stop enters Idle, whose action (stop) is issued in the same
// cycle.
func (c *Controller) evaluate() motor.Command {
	switch c.state {
	case GoingLeft:
		if c.reading.Left {
			c.arrive("left", c.cfg.Pins.LeftSwitch)
		} else {
			return motor.Command{Direction: motor.Left, Enable: true}
		}
	case GoingRight:
		if c.reading.Right {
			c.arrive("right", c.cfg.Pins.RightSwitch)
		} else {
			return motor.Command{Direction: motor.Right, Enable: true}
		}
	case GoingMiddle:
		if c.reading.Middle {
			c.arrive("middle", c.cfg.Pins.MiddleSwitch)
		} else if c.lastSide == SideLeft {
			return motor.Command{Direction: motor.Right, Enable: true}
		} else {
			return motor.Command{Direction: motor.Left, Enable: true}
		}
	}
	return motor.Stop
}

func (c *Controller) arrive(stop string, pin int) {
	debug.Arrived(stop, pin)
	c.state = Idle
}
