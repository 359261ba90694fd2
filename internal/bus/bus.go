// Package bus carries button vectors from the joystick node to the wiper
// controller. Delivery is best-effort and at-most-once: publishing never
// blocks, subscribers never see messages sent before they attached, and a
// subscriber that falls behind loses messages instead of stalling anyone.
package bus

import (
	"errors"
	"fmt"
)

// MaxPayload is the largest payload accepted by Publish.
const MaxPayload = 1024

// DefaultQueueSize is the per-subscriber backlog used when none is configured.
const DefaultQueueSize = 16

// ErrPayloadSize is returned when a payload is empty or larger than MaxPayload.
var ErrPayloadSize = errors.New("bus: invalid payload size")

// Publisher broadcasts raw payloads to all current subscribers.
type Publisher interface {
	Publish(payload []byte) error
}

// Subscriber hands out pending messages without blocking.
type Subscriber interface {
	// TryReceive returns the oldest pending message, or ok=false when
	// nothing is pending. Each message is returned at most once.
	TryReceive() (payload []byte, ok bool)
}

func checkPayload(payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadSize, len(payload))
	}
	return nil
}
