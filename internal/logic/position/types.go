package position

import (
	"fmt"

	"github.com/cjeanneret/wiper/internal/command"
)

// State is the motor state machine state.
type State int

const (
	Idle State = iota
	GoingLeft
	GoingRight
	GoingMiddle
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case GoingLeft:
		return "GoingLeft"
	case GoingRight:
		return "GoingRight"
	case GoingMiddle:
		return "GoingMiddle"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// stateFor maps a commanded target to the state that travels toward it.
func stateFor(t command.Target) State {
	switch t {
	case command.TargetLeft:
		return GoingLeft
	case command.TargetRight:
		return GoingRight
	default:
		return GoingMiddle
	}
}

// Side remembers which end stop was seen last. It decides the approach
// direction when homing to the middle stop.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// ParseSide converts "left" / "right" into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return SideLeft, fmt.Errorf("unknown side: %q", s)
	}
}

// ReadPolicy decides what a failed or malformed switch read means.
type ReadPolicy int

const (
	// FailOpen treats a failed read as "not asserted". Travel continues
	// until a good read shows the switch, so a glitch never stops the loop.
	FailOpen ReadPolicy = iota
	// FailSafe treats a failed read as "asserted", so travel toward that
	// switch ends and the motor is stopped.
	FailSafe
)

func (p ReadPolicy) String() string {
	if p == FailSafe {
		return "fail_safe"
	}
	return "fail_open"
}

// ParseReadPolicy converts "fail_open" / "fail_safe" into a ReadPolicy.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch s {
	case "fail_open":
		return FailOpen, nil
	case "fail_safe":
		return FailSafe, nil
	default:
		return FailOpen, fmt.Errorf("unknown read failure policy: %q", s)
	}
}

// Reading holds the three limit switches as sampled in one cycle.
type Reading struct {
	Left   bool `json:"left"`
	Middle bool `json:"middle"`
	Right  bool `json:"right"`
}
