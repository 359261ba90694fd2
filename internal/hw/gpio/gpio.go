package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/wiper/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for the pin-access channel.
// Implementations talk to a GPIO stream device, a microcontroller over a
// serial port, the Raspberry Pi registers directly, or nothing at all.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// Driver types accepted by NewDriver.
const (
	TypeStream = "stream" // character device speaking the r/w framing
	TypeSerial = "serial" // same framing over a serial port
	TypeRPi    = "rpio"   // direct register access with go-rpio
	TypeMock   = "mock"   // no hardware
)

// Options selects and configures a Driver.
type Options struct {
	Type        string
	Device      string        // device file or serial port name
	BaudRate    int           // serial only
	Settle      time.Duration // delay between a read request and its response
	ReadTimeout time.Duration // serial only; 0 blocks until a byte arrives
	Pull        string        // rpio only: "up", "down" or "" for none
}

// NewDriver creates a GPIO driver based on the chosen type.
func NewDriver(opts Options) (Driver, error) {
	switch opts.Type {
	case TypeMock:
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	case TypeStream, "":
		return OpenStream(opts.Device, opts.Settle)
	case TypeSerial:
		return OpenSerial(opts.Device, opts.BaudRate, opts.Settle, opts.ReadTimeout)
	case TypeRPi:
		return NewRPiDriver(opts.Pull)
	default:
		return nil, fmt.Errorf("unknown pin access type: %q", opts.Type)
	}
}

// MockDriver keeps pin levels in memory and logs every action.
// Used for development on PC or testing; levels can be preset with Set.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
}

// NewMockDriver returns a MockDriver with every pin Low.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

// Set forces the level returned by ReadPin for pin.
func (m *MockDriver) Set(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
}

// Get returns the last level written to or set on pin.
func (m *MockDriver) Get(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.Set(pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	level := m.Get(pin)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
