package position

import (
	"testing"

	"github.com/cjeanneret/wiper/internal/command"
)

func TestParseSide(t *testing.T) {
	cases := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"left", SideLeft, false},
		{"right", SideRight, false},
		{"up", SideLeft, true},
		{"", SideLeft, true},
	}
	for _, tc := range cases {
		got, err := ParseSide(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSide(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseSide(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseReadPolicy(t *testing.T) {
	if p, err := ParseReadPolicy("fail_open"); err != nil || p != FailOpen {
		t.Errorf("fail_open -> %v, %v", p, err)
	}
	if p, err := ParseReadPolicy("fail_safe"); err != nil || p != FailSafe {
		t.Errorf("fail_safe -> %v, %v", p, err)
	}
	if _, err := ParseReadPolicy("ignore"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestStateFor(t *testing.T) {
	cases := map[command.Target]State{
		command.TargetLeft:   GoingLeft,
		command.TargetRight:  GoingRight,
		command.TargetMiddle: GoingMiddle,
	}
	for target, want := range cases {
		if got := stateFor(target); got != want {
			t.Errorf("stateFor(%v) = %v, want %v", target, got, want)
		}
	}
}

func TestState_String(t *testing.T) {
	if GoingMiddle.String() != "GoingMiddle" {
		t.Errorf("GoingMiddle = %q", GoingMiddle.String())
	}
	if State(42).String() != "State(42)" {
		t.Errorf("unknown state = %q", State(42).String())
	}
}
