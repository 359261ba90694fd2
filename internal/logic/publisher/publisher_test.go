package publisher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cjeanneret/wiper/internal/bus"
	"github.com/cjeanneret/wiper/internal/command"
	"github.com/cjeanneret/wiper/internal/hw/joystick"
)

// recordingBus records every published payload.
type recordingBus struct {
	sent [][]byte
	err  error
}

func (b *recordingBus) Publish(payload []byte) error {
	b.sent = append(b.sent, append([]byte(nil), payload...))
	return b.err
}

// scriptedSource replays events, then fails with err.
type scriptedSource struct {
	events []joystick.Event
	err    error
}

func (s *scriptedSource) Next() (joystick.Event, error) {
	if len(s.events) == 0 {
		return joystick.Event{}, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func button(number uint8, value int16) joystick.Event {
	return joystick.Event{Type: joystick.TypeButton, Number: number, Value: value}
}

func TestHandle_PublishesWholeVector(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	if !p.Handle(button(2, 1)) {
		t.Fatal("in-bounds button should be handled")
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(b.sent))
	}
	if !bytes.Equal(b.sent[0], []byte{0, 0, 1, 0}) {
		t.Errorf("payload = %v, want [0 0 1 0]", b.sent[0])
	}
}

func TestHandle_OneEventOnePublish(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	events := []joystick.Event{
		button(1, 1), button(1, 1), button(1, 0), button(3, 1), button(3, 1),
	}
	for _, ev := range events {
		p.Handle(ev)
	}
	if len(b.sent) != len(events) {
		t.Errorf("publishes = %d, want %d (repeats are not coalesced)", len(b.sent), len(events))
	}
}

func TestHandle_OutOfBoundsDropped(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	for _, n := range []uint8{command.Size, 5, 11, 255} {
		if p.Handle(button(n, 1)) {
			t.Errorf("button %d should be dropped", n)
		}
	}
	if len(b.sent) != 0 {
		t.Errorf("out-of-bounds events published %d times", len(b.sent))
	}
	if p.Vector() != (command.Vector{}) {
		t.Errorf("vector modified: %v", p.Vector())
	}
}

func TestHandle_AxisEventsIgnored(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	if p.Handle(joystick.Event{Type: joystick.TypeAxis, Number: 1, Value: 32767}) {
		t.Error("axis event should be ignored")
	}
	if len(b.sent) != 0 {
		t.Error("axis event was published")
	}
}

func TestHandle_InitialStateApplied(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	ev := joystick.Event{Type: joystick.TypeButton | joystick.TypeInit, Number: 3, Value: 1}
	if !p.Handle(ev) {
		t.Fatal("initial-state button event should be applied")
	}
	if p.Vector()[3] != 1 {
		t.Errorf("vector = %v, want slot 3 set", p.Vector())
	}
	if len(b.sent) != 1 {
		t.Errorf("publishes = %d, want 1", len(b.sent))
	}
}

func TestHandle_PublishErrorNotFatal(t *testing.T) {
	b := &recordingBus{err: errors.New("network down")}
	p := New(nil, b)

	if !p.Handle(button(1, 1)) {
		t.Error("event should still be handled")
	}
	if !p.Handle(button(1, 0)) {
		t.Error("publisher should keep working after a failed publish")
	}
	if p.Vector()[1] != 0 {
		t.Errorf("vector = %v", p.Vector())
	}
}

// The published vector after N events is a fold: each slot holds the last
// value written to it.
func TestHandle_FoldProperty(t *testing.T) {
	b := &recordingBus{}
	p := New(nil, b)

	events := []joystick.Event{
		button(1, 1), button(2, 1), button(3, 1),
		button(2, 0), button(1, 0), button(9, 1), button(3, 0), button(3, 1),
	}
	for _, ev := range events {
		p.Handle(ev)
	}

	want := []byte{0, 0, 0, 1}
	last := b.sent[len(b.sent)-1]
	if !bytes.Equal(last, want) {
		t.Errorf("last payload = %v, want %v", last, want)
	}
}

func TestRun_SourceFailureIsFatal(t *testing.T) {
	src := &scriptedSource{
		events: []joystick.Event{button(1, 1), button(1, 0)},
		err:    io.ErrUnexpectedEOF,
	}
	b := &recordingBus{}
	p := New(src, b)

	err := p.Run(context.Background())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Run err = %v, want wrapped io.ErrUnexpectedEOF", err)
	}
	if len(b.sent) != 2 {
		t.Errorf("publishes = %d, want 2", len(b.sent))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	src := &scriptedSource{err: io.EOF}
	p := New(src, &recordingBus{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

func TestRun_EndToEndOverHub(t *testing.T) {
	hub := bus.NewHub(8)
	sub := hub.Subscribe()
	defer sub.Close()

	src := &scriptedSource{
		events: []joystick.Event{button(1, 1), button(1, 0)},
		err:    io.EOF,
	}
	New(src, hub).Run(context.Background())

	first, ok := sub.TryReceive()
	if !ok || !bytes.Equal(first, []byte{0, 1, 0, 0}) {
		t.Errorf("first = %v/%v", first, ok)
	}
	second, ok := sub.TryReceive()
	if !ok || !bytes.Equal(second, []byte{0, 0, 0, 0}) {
		t.Errorf("second = %v/%v", second, ok)
	}
}
