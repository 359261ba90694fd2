// Package joystick reads events from the Linux joystick API (/dev/input/jsN).
package joystick

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cjeanneret/wiper/internal/debug"
)

// Event type bits, as defined by linux/joystick.h.
const (
	TypeButton uint8 = 0x01
	TypeAxis   uint8 = 0x02
	TypeInit   uint8 = 0x80 // set on synthetic events reporting initial state
)

// EventSize is the size of one js_event on the wire.
const EventSize = 8

// ErrShortRead is returned when the device yields a partial event.
var ErrShortRead = errors.New("joystick: short read")

// Event is one decoded js_event.
type Event struct {
	Time   uint32 // milliseconds, device clock
	Value  int16  // 0/1 for buttons, position for axes
	Type   uint8
	Number uint8 // button or axis index
}

// IsButton reports whether the event concerns a button, initial or not.
func (e Event) IsButton() bool {
	return e.Type&^TypeInit == TypeButton
}

// IsInit reports whether the event is a device-reported initial level
// rather than a real transition.
func (e Event) IsInit() bool {
	return e.Type&TypeInit != 0
}

// Decode parses a single js_event (little-endian, EventSize bytes).
func Decode(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, len(b), EventSize)
	}
	return Event{
		Time:   binary.LittleEndian.Uint32(b[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(b[4:6])),
		Type:   b[6],
		Number: b[7],
	}, nil
}

// Reader yields joystick events one at a time.
type Reader struct {
	r   io.Reader
	buf [EventSize]byte
}

// NewReader wraps any byte stream carrying js_event records.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next blocks until the next event is available.
func (r *Reader) Next() (Event, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, n, EventSize)
		}
		return Event{}, err
	}
	ev, _ := Decode(r.buf[:])
	debug.Trace("Joystick: type=0x%02x number=%d value=%d", ev.Type, ev.Number, ev.Value)
	return ev, nil
}

// Device is a Reader bound to an opened joystick device file.
type Device struct {
	*Reader
	f *os.File
}

// Open opens a joystick device such as /dev/input/js0.
func Open(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open joystick %s: %w", path, err)
	}
	debug.Verbose("Joystick: opened %s", path)
	return &Device{Reader: NewReader(f), f: f}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.f.Close()
}
