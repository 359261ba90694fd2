package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/wiper/internal/logic/position"
)

// ---------- Handler helpers ----------

func newTestHandlers(status StatusFunc) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(NewStatusBroadcaster(), status, staticFS)
}

func fixedStatus() position.Snapshot {
	return position.Snapshot{
		State:     "GoingRight",
		LastSide:  "left",
		Command:   []int{0, 0, 1, 0},
		Switches:  position.Reading{Left: true},
		Direction: "right",
		Enable:    true,
		Cycles:    42,
	}
}

func subscriberCount(b *StatusBroadcaster) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ---------- HandleStatus ----------

func TestHandleStatus(t *testing.T) {
	h := newTestHandlers(fixedStatus)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	h.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var snap position.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "GoingRight" {
		t.Errorf("state = %q, want GoingRight", snap.State)
	}
	if len(snap.Command) != 4 || snap.Command[2] != 1 {
		t.Errorf("command = %v", snap.Command)
	}
	if !snap.Switches.Left || snap.Switches.Right {
		t.Errorf("switches = %+v", snap.Switches)
	}
	if snap.Cycles != 42 {
		t.Errorf("cycles = %d, want 42", snap.Cycles)
	}
}

func TestHandleStatus_JSONFieldNames(t *testing.T) {
	h := newTestHandlers(fixedStatus)
	w := httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"state", "last_side", "command", "switches", "direction", "enable", "cycles"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, w.Body.String())
		}
	}
}

func TestHandleStatus_NilStatus(t *testing.T) {
	h := newTestHandlers(nil)
	w := httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ---------- HandleStatusStream ----------

func TestHandleStatusStream_DeliversBroadcasts(t *testing.T) {
	h := newTestHandlers(fixedStatus)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/status/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleStatusStream(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for subscriberCount(h.Broadcaster) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	h.Broadcaster.BroadcastMsg("Target: right")
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after cancel")
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, ": connected\n\n") {
		t.Errorf("body should start with connect comment: %q", body)
	}
	if !strings.Contains(body, "data: ") || !strings.Contains(body, "Target: right") {
		t.Errorf("body missing broadcast: %q", body)
	}
	if subscriberCount(h.Broadcaster) != 0 {
		t.Error("subscriber not removed after disconnect")
	}
}

func TestHandleStatusStream_Heartbeat(t *testing.T) {
	h := newTestHandlers(fixedStatus)
	h.heartbeat = 5 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/status/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	h.HandleStatusStream(w, req)

	if !strings.Contains(w.Body.String(), ": heartbeat") {
		t.Errorf("expected heartbeat in %q", w.Body.String())
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(fixedStatus)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewStatusBroadcaster(), fixedStatus, fstest.MapFS{})
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- Routing ----------

func TestServerMux_Routes(t *testing.T) {
	srv := NewServer(":0", NewStatusBroadcaster(), fixedStatus)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/static/style.css", http.StatusOK},
		{http.MethodPost, "/status", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("%s %s = %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
			}
		})
	}
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewStatusBroadcaster(), fixedStatus)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run err = %v, want nil", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
