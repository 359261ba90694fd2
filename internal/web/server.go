package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// DefaultWatchInterval is how often Run samples the controller for state events.
const DefaultWatchInterval = 100 * time.Millisecond

// Server wraps the HTTP server and handlers.
type Server struct {
	addr          string
	handlers      *Handlers
	watchInterval time.Duration
}

// NewServer creates a read-only status server for the given address.
func NewServer(addr string, broadcaster *StatusBroadcaster, status StatusFunc) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:          addr,
		handlers:      NewHandlers(broadcaster, status, subFS),
		watchInterval: DefaultWatchInterval,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and the snapshot watcher and blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.handlers.Status != nil {
		go s.handlers.Broadcaster.Watch(ctx, s.handlers.Status, s.watchInterval)
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
