package web

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/wiper/internal/logic/position"
)

// DefaultClientBuffer is the number of events queued per SSE client.
const DefaultClientBuffer = 64

// StatusEvent is one SSE message: either a log line or a controller snapshot.
type StatusEvent struct {
	Time  string             `json:"t"`
	Level string             `json:"l,omitempty"`
	Msg   string             `json:"msg,omitempty"`
	State *position.Snapshot `json:"state,omitempty"`
}

// StatusBroadcaster fans events out to SSE clients. Slow clients miss
// events; the controller never waits for them.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	buffer  int
}

// NewStatusBroadcaster creates a broadcaster whose clients each buffer
// DefaultClientBuffer events.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
		buffer:  DefaultClientBuffer,
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, b.buffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a log message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"live","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastSnapshot sends a controller snapshot with level "state".
func (b *StatusBroadcaster) BroadcastSnapshot(s position.Snapshot) {
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: "state",
		State: &s,
	})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Watch polls status every interval and broadcasts a snapshot whenever the
// state, motor output, switches or command differ from the last one sent.
// It returns when ctx is cancelled.
func (b *StatusBroadcaster) Watch(ctx context.Context, status StatusFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last position.Snapshot
	sent := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := status()
			if sent && sameSnapshot(last, s) {
				continue
			}
			b.BroadcastSnapshot(s)
			last, sent = s, true
		}
	}
}

// sameSnapshot ignores the cycle counter.
func sameSnapshot(a, b position.Snapshot) bool {
	return a.State == b.State &&
		a.LastSide == b.LastSide &&
		a.Direction == b.Direction &&
		a.Enable == b.Enable &&
		a.Switches == b.Switches &&
		slices.Equal(a.Command, b.Command)
}

// BroadcastWriter implements io.Writer; each Write broadcasts one debug
// line, tagged with the level found in it.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast(levelOf(msg), msg)
	}
	return len(p), nil
}

var levelTags = []struct {
	tag   string
	level string
}{
	{"[ERROR]", "error"},
	{"[INFO]", "info"},
	{"[LIVE]", "live"},
	{"[VERBOSE]", "verbose"},
	{"[TRACE]", "trace"},
	{"[GPIO]", "trace"},
}

// levelOf extracts the debug level tag from a log line. Untagged lines are "info".
func levelOf(line string) string {
	for _, t := range levelTags {
		if strings.Contains(line, t.tag) {
			return t.level
		}
	}
	return "info"
}
