// Package command defines the button-state vector exchanged between the
// joystick node and the wiper controller.
package command

// Size is the number of slots in a Vector. Index 0 is reserved.
const Size = 4

// Vector is the full button state, one 0/1 byte per button index.
// It is always transmitted whole, never as a delta.
type Vector [Size]byte

// Set writes value into slot index. Any non-zero value is stored as 1.
// It returns false (and changes nothing) when index is out of bounds.
func (v *Vector) Set(index int, value int) bool {
	if index < 0 || index >= Size {
		return false
	}
	if value != 0 {
		v[index] = 1
	} else {
		v[index] = 0
	}
	return true
}

// Pressed reports whether slot index is asserted. Out-of-bounds reads false.
func (v Vector) Pressed(index int) bool {
	if index < 0 || index >= Size {
		return false
	}
	return v[index] != 0
}

// Bytes returns a copy of the vector in index order.
func (v Vector) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, v[:])
	return b
}

// Decode converts a bus payload into a Vector. Only payloads of exactly
// Size bytes are accepted.
func Decode(payload []byte) (Vector, bool) {
	var v Vector
	if len(payload) != Size {
		return v, false
	}
	copy(v[:], payload)
	return v, true
}
