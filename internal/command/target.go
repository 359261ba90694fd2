package command

import "fmt"

// Target is a mechanical stop the carriage can be sent to.
type Target int

const (
	TargetLeft Target = iota
	TargetRight
	TargetMiddle
)

func (t Target) String() string {
	switch t {
	case TargetLeft:
		return "left"
	case TargetRight:
		return "right"
	case TargetMiddle:
		return "middle"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ButtonMap assigns a vector index to each target flag.
type ButtonMap struct {
	Left   int
	Right  int
	Middle int
}

// DefaultButtonMap is the mapping used when the configuration does not
// override it.
var DefaultButtonMap = ButtonMap{Left: 1, Right: 2, Middle: 3}

// Target returns the directive carried by v. Flags are checked in fixed
// priority order left, right, middle; the first asserted one wins.
// ok is false when no target flag is asserted, which is not a stop command.
func (m ButtonMap) Target(v Vector) (t Target, ok bool) {
	switch {
	case v.Pressed(m.Left):
		return TargetLeft, true
	case v.Pressed(m.Right):
		return TargetRight, true
	case v.Pressed(m.Middle):
		return TargetMiddle, true
	}
	return 0, false
}

// Validate checks that the three indices are distinct and addressable.
func (m ButtonMap) Validate() error {
	idx := map[string]int{"left": m.Left, "right": m.Right, "middle": m.Middle}
	seen := make(map[int]string, len(idx))
	for name, i := range idx {
		if i < 1 || i >= Size {
			return fmt.Errorf("button %s index must be between 1 and %d, got %d", name, Size-1, i)
		}
		if other, dup := seen[i]; dup {
			return fmt.Errorf("buttons %s and %s share index %d", other, name, i)
		}
		seen[i] = name
	}
	return nil
}
