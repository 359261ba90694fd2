package bus

import "sync"

// Hub is an in-process bus. Each subscriber gets its own bounded queue;
// when a queue is full the message is dropped for that subscriber only.
type Hub struct {
	mu        sync.RWMutex
	subs      map[*HubSubscriber]struct{}
	queueSize int
}

// NewHub creates a hub with the given per-subscriber queue size.
// A size <= 0 falls back to DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subs:      make(map[*HubSubscriber]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe attaches a new subscriber. It only sees messages published
// after this call returns.
func (h *Hub) Subscribe() *HubSubscriber {
	s := &HubSubscriber{
		hub: h,
		ch:  make(chan []byte, h.queueSize),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish copies payload to every subscriber. It never blocks.
func (h *Hub) Publish(payload []byte) error {
	if err := checkPayload(payload); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case s.ch <- msg:
		default:
			// queue full, skip
		}
	}
	return nil
}

// HubSubscriber is a Subscriber attached to a Hub.
type HubSubscriber struct {
	hub *Hub
	ch  chan []byte
}

// TryReceive implements Subscriber.
func (s *HubSubscriber) TryReceive() ([]byte, bool) {
	select {
	case msg := <-s.ch:
		return msg, true
	default:
		return nil, false
	}
}

// Close detaches the subscriber. Pending messages stay readable.
func (s *HubSubscriber) Close() error {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	return nil
}
