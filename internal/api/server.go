// Package api implements the inspection facade: a single-process HTTP
// server exposing list/get/replay/scan endpoints over the captured request
// and response store. It never mutates the store it reads from.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kstvn/kestrel/internal/httpmsg"
)

// Sender is the outbound path the facade uses for /repeat and /scan,
// satisfied structurally by *proxy.Outbound.
type Sender interface {
	Send(req *httpmsg.Request) (*httpmsg.Response, error)
}

// Server is the inspection facade's HTTP server.
type Server struct {
	store  *httpmsg.Store
	sender Sender
	server *http.Server
}

// NewServer builds a Server backed by store for reads and sender for the
// replay/scan outbound path. It does not start listening until Start.
func NewServer(store *httpmsg.Store, sender Sender) *Server {
	s := &Server{store: store, sender: sender}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /requests", s.handleListRequests)
	mux.HandleFunc("GET /requests/{id}", s.handleGetRequest)
	mux.HandleFunc("GET /responses", s.handleListResponses)
	mux.HandleFunc("GET /responses/{id}", s.handleGetResponse)
	mux.HandleFunc("GET /repeat/{id}", s.handleRepeat)
	mux.HandleFunc("GET /scan/{id}", s.handleScan)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the underlying http.Handler, mainly for tests that want
// to drive the facade with httptest without binding a real socket.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins listening on addr in the background.
func (s *Server) Start(addr string) error {
	s.server.Addr = addr
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
