package proxy

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/kstvn/kestrel/internal/ca"
	"github.com/kstvn/kestrel/internal/httpmsg"
	"github.com/kstvn/kestrel/internal/log"
)

// Listener is the single-process acceptor that owns the shared DB handle
// and CA, and spawns one handler goroutine per accepted connection.
type Listener struct {
	store *httpmsg.Store
	ca    *ca.CA

	mu sync.Mutex
	ln net.Listener
}

// NewListener returns a Listener backed by store and ca. It does not start
// accepting until ListenAndServe is called.
func NewListener(store *httpmsg.Store, cas *ca.CA) *Listener {
	return &Listener{store: store, ca: cas}
}

// ListenAndServe binds addr and runs the accept loop until the listener is
// closed via Shutdown, at which point it returns nil (a closed-on-purpose
// listener is not a failure).
func (l *Listener) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("proxy: listening on %s: %w", addr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	log.Info("proxy listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		go newHandler(l.store, l.ca).serve(conn)
	}
}

// Addr returns the bound address, or "" if not yet listening.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Shutdown stops the accept loop. It does not cancel in-flight handlers;
// they complete on their own socket errors. Callers that also want
// cert/serial cleanup should call ca.PurgeAll() themselves after Shutdown
// returns.
func (l *Listener) Shutdown() error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}
