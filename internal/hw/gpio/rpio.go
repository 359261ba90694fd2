package gpio

import (
	"fmt"

	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver drives the Raspberry Pi pins directly using go-rpio, for when
// the controller runs on the Pi itself instead of behind a GPIO stream device.
type RPiDriver struct {
	pins map[int]rpio.Pin
	pull rpio.Pull
}

// NewRPiDriver maps the Pi GPIO registers.
// pull ("up", "down" or "") is applied to every pin set up as input, so
// limit switches wired to ground or to 3V3 read a defined level when open.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiDriver(pull string) (*RPiDriver, error) {
	p, err := parsePull(pull)
	if err != nil {
		return nil, err
	}

	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
		pull: p,
	}, nil
}

func parsePull(s string) (rpio.Pull, error) {
	switch s {
	case "":
		return rpio.PullOff, nil
	case "up":
		return rpio.PullUp, nil
	case "down":
		return rpio.PullDown, nil
	default:
		return rpio.PullOff, fmt.Errorf("unknown pull mode: %q", s)
	}
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	if err := checkPin(pin); err != nil {
		return err
	}

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
		p.Pull(r.pull)
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	level := Level(p.Read() == rpio.High)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	// Reset all pins to input (safe state, motor driver inputs float low)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
