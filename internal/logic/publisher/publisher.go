package publisher

import (
	"context"
	"fmt"

	"github.com/cjeanneret/wiper/internal/bus"
	"github.com/cjeanneret/wiper/internal/command"
	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/cjeanneret/wiper/internal/hw/joystick"
)

// Source yields joystick events, blocking until one is available.
type Source interface {
	Next() (joystick.Event, error)
}

// Publisher turns button events into whole-vector broadcasts: one in-bounds
// button event in, one publish out, with no debouncing or coalescing.
type Publisher struct {
	src Source
	bus bus.Publisher
	vec command.Vector
}

// New creates a Publisher reading from src and sending on b, starting from
// an all-clear vector.
func New(src Source, b bus.Publisher) *Publisher {
	return &Publisher{
		src: src,
		bus: b,
	}
}

// Vector returns a copy of the current button state.
func (p *Publisher) Vector() command.Vector {
	return p.vec
}

// Handle applies one event and publishes the vector. It returns false for
// events that are not buttons or whose index is out of bounds; those are
// dropped without publishing. Initial-state events are applied and
// published but never logged as presses.
func (p *Publisher) Handle(ev joystick.Event) bool {
	if !ev.IsButton() {
		return false
	}

	idx := int(ev.Number)
	if !p.vec.Set(idx, int(ev.Value)) {
		debug.Verbose("Ignoring button %d (only %d tracked)", idx, command.Size)
		return false
	}

	if ev.Value == 1 && !ev.IsInit() {
		debug.Press(idx)
	}

	payload := p.vec.Bytes()
	if err := p.bus.Publish(payload); err != nil {
		debug.Error(fmt.Errorf("publish vector: %w", err))
	} else {
		debug.Vector("Published", payload)
	}
	return true
}

// Run reads events until the source fails. A read error is returned
// wrapped; without the input device there is nothing left to do.
// Cancelling ctx only takes effect once the pending read returns, so
// callers close the device to unblock it.
func (p *Publisher) Run(ctx context.Context) error {
	debug.Info("Joystick node running, waiting for button presses")
	for {
		ev, err := p.src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read joystick event: %w", err)
		}
		p.Handle(ev)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
