package gpio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"

	"github.com/cjeanneret/wiper/internal/debug"
)

// Operation tags of the stream framing.
const (
	opRead  byte = 'r'
	opWrite byte = 'w'
)

// DefaultSettle is the pause between a read request and reading the answer.
const DefaultSettle = 100 * time.Microsecond

var (
	// ErrShortWrite is returned when a request frame was not fully written.
	ErrShortWrite = errors.New("gpio: short request write")
	// ErrShortResponse is returned when no status byte came back.
	ErrShortResponse = errors.New("gpio: short response")
	// ErrPinRange is returned for pin ids that do not fit the one-byte framing.
	ErrPinRange = errors.New("gpio: pin out of range")
)

// inputResetter is implemented by transports that can discard unread input,
// such as serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// StreamDriver speaks the request/response pin protocol over a byte stream:
//
//	read:  {'r', pin}        then, after the settle delay, one status byte back
//	write: {'w', pin, value} no answer
//
// Pin direction is owned by the device, so SetupPin only logs.
type StreamDriver struct {
	rw     io.ReadWriter
	closer io.Closer
	settle time.Duration
	sleep  func(time.Duration)
}

// NewStreamDriver wraps an already opened stream. If rw is also an
// io.Closer it is closed by Close.
func NewStreamDriver(rw io.ReadWriter, settle time.Duration) *StreamDriver {
	d := &StreamDriver{
		rw:     rw,
		settle: settle,
		sleep:  time.Sleep,
	}
	if c, ok := rw.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// OpenStream opens a GPIO stream character device (e.g. /dev/gpio_stream).
func OpenStream(path string, settle time.Duration) (*StreamDriver, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio stream %s: %w", path, err)
	}
	debug.Info("Using GPIO stream device %s", path)
	return NewStreamDriver(f, settle), nil
}

// OpenSerial opens a serial port to a microcontroller that implements the
// same framing. A non-zero readTimeout bounds how long a read may hang.
func OpenSerial(port string, baudRate int, settle, readTimeout time.Duration) (*StreamDriver, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set serial read timeout: %w", err)
		}
	}
	debug.Info("Using GPIO over serial port %s (%d baud)", port, baudRate)
	return NewStreamDriver(p, settle), nil
}

func (s *StreamDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return checkPin(pin)
}

func (s *StreamDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	if err := checkPin(pin); err != nil {
		return err
	}

	var v byte
	if level == High {
		v = 1
	}
	n, err := s.rw.Write([]byte{opWrite, byte(pin), v})
	if err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	if n != 3 {
		return fmt.Errorf("write pin %d: %w (%d of 3 bytes)", pin, ErrShortWrite, n)
	}
	return nil
}

func (s *StreamDriver) ReadPin(pin int) (Level, error) {
	if err := checkPin(pin); err != nil {
		return Low, err
	}

	// A reply that arrived after a previous read timed out must not be
	// taken as the answer for this pin.
	if r, ok := s.rw.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return Low, fmt.Errorf("flush input before pin %d: %w", pin, err)
		}
	}

	n, err := s.rw.Write([]byte{opRead, byte(pin)})
	if err != nil {
		return Low, fmt.Errorf("request pin %d: %w", pin, err)
	}
	if n != 2 {
		return Low, fmt.Errorf("request pin %d: %w (%d of 2 bytes)", pin, ErrShortWrite, n)
	}

	if s.settle > 0 {
		s.sleep(s.settle)
	}

	var buf [1]byte
	n, err = s.rw.Read(buf[:])
	if n != 1 {
		if err != nil {
			return Low, fmt.Errorf("read pin %d: %w: %w", pin, ErrShortResponse, err)
		}
		return Low, fmt.Errorf("read pin %d: %w", pin, ErrShortResponse)
	}

	level := Level(buf[0] != 0)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (s *StreamDriver) Close() error {
	debug.Trace("GPIO Close (stream)")
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func checkPin(pin int) error {
	if pin < 0 || pin > 255 {
		return fmt.Errorf("%w: %d", ErrPinRange, pin)
	}
	return nil
}
