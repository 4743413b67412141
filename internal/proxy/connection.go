// Package proxy implements the connection handler and the
// listener/dispatcher: terminating one client TCP connection end to end,
// dispatching by method into plain HTTP forwarding or a CONNECT-tunnel MITM,
// and the accept loop that spawns one handler goroutine per connection.
//
// The handler owns the raw net.Conn directly (net.Listen/Accept, no
// http.Server in front of it) and dials upstream with net.Dial/tls.Dial:
// net/http's server and Transport both funnel headers through http.Header's
// map representation, which would erase the wire header order httpmsg
// preserves end to end.
package proxy

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/kstvn/kestrel/internal/ca"
	"github.com/kstvn/kestrel/internal/httpmsg"
	"github.com/kstvn/kestrel/internal/log"
)

// plainMethods are the methods that enter plain-proxy mode when given an
// absolute-URI target. CONNECT is handled separately.
var plainMethods = map[string]bool{
	"GET": true, "POST": true, "HEAD": true, "OPTIONS": true,
	"PUT": true, "DELETE": true, "PATCH": true,
}

// handler terminates one client connection end to end. One goroutine per
// accepted socket, spawned by Listener.
type handler struct {
	store  *httpmsg.Store
	ca     *ca.CA
	connID string
}

func newHandler(store *httpmsg.Store, cas *ca.CA) *handler {
	return &handler{store: store, ca: cas, connID: uuid.NewString()}
}

// serve runs the per-connection lifecycle: parse the first request,
// dispatch to plain-proxy or tunnel mode, and always close conn on return.
func (h *handler) serve(conn net.Conn) {
	defer conn.Close()
	logger := log.With("conn_id", h.connID, "remote", conn.RemoteAddr().String())

	br := bufio.NewReader(conn)
	req, err := httpmsg.RequestFromHandler(br, false)
	if err != nil {
		logger.Debug("malformed request", "error", err)
		writeErrorResponse(conn, 400, "Bad Request", err.Error())
		return
	}

	if strings.EqualFold(req.Method, "CONNECT") {
		h.handleTunnel(conn, req, logger)
		return
	}

	if !plainMethods[strings.ToUpper(req.Method)] {
		writeErrorResponse(conn, 400, "Bad Request", fmt.Sprintf("unsupported method %q", req.Method))
		return
	}

	h.handlePlain(conn, req, logger)
}

// handlePlain runs plain-proxy mode: persist, dial, forward, persist the
// response. The response is written to the client before it is persisted;
// a failed DB write is logged, never surfaced.
func (h *handler) handlePlain(conn net.Conn, req *httpmsg.Request, logger logType) {
	if err := h.store.SaveRequest(req); err != nil {
		logger.Warn("failed to persist request", "error", err)
	}

	resp, err := sendRequest(req)
	if err != nil {
		var dialErr *DialError
		if errors.As(err, &dialErr) {
			writeErrorResponse(conn, 400, "Bad Request", "Could not send request to host")
		} else {
			writeErrorResponse(conn, 502, "Bad Gateway", fmt.Sprintf("Cannot connect to %s:%d", req.Host, req.Port))
		}
		logger.Debug("upstream request failed", "error", err, "host", req.Host, "port", req.Port)
		return
	}

	if err := resp.WriteTo(bufio.NewWriter(conn)); err != nil {
		logger.Debug("writing response to client failed", "error", err)
		return
	}

	if req.ID != 0 {
		if err := h.store.SaveResponse(req.ID, resp); err != nil {
			logger.Warn("failed to persist response", "error", err)
		}
	}
}

// handleTunnel runs CONNECT-tunnel MITM mode: issue a leaf certificate for
// the host, dial the upstream over TLS, handshake with the client using the
// leaf, then relay bytes both ways while capturing them.
func (h *handler) handleTunnel(conn net.Conn, req *httpmsg.Request, logger logType) {
	certPath, keyPath, err := h.ca.Issue(req.Host)
	if err != nil {
		logger.Warn("certificate issuance failed", "host", req.Host, "error", err)
		writeErrorResponse(conn, 502, "Bad Gateway", "Could not issue certificate")
		return
	}
	defer h.ca.RemoveHostCert(req.Host)

	upstream, err := tls.Dial("tcp", fmt.Sprintf("%s:%d", req.Host, req.Port), &tls.Config{ServerName: req.Host})
	if err != nil {
		logger.Debug("upstream TLS dial failed", "host", req.Host, "error", err)
		writeErrorResponse(conn, 502, "Bad Gateway", fmt.Sprintf("Cannot connect to %s:%d", req.Host, req.Port))
		return
	}
	defer upstream.Close()

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n")); err != nil {
		logger.Debug("writing CONNECT reply failed", "error", err)
		return
	}

	leafCert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		logger.Warn("loading issued leaf certificate failed", "error", err)
		return
	}

	tlsConn := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{leafCert}})
	if err := tlsConn.Handshake(); err != nil {
		// Client refused our leaf: close both sockets, drop silently.
		logger.Debug("client TLS handshake failed", "host", req.Host, "error", err)
		return
	}
	defer tlsConn.Close()

	rawRequest, rawResponse := relay(tlsConn, upstream)

	h.captureTunnelExchange(req.Host, rawRequest, rawResponse, logger)
}

// captureTunnelExchange attempts to parse the raw bytes accumulated during
// the relay into a Request/Response pair and persists them. Parse failures
// here are non-fatal: log and drop the record.
func (h *handler) captureTunnelExchange(host string, rawRequest, rawResponse []byte, logger logType) {
	if len(rawRequest) == 0 {
		return
	}
	capturedReq, err := httpmsg.RequestFromRaw(rawRequest, true)
	if err != nil {
		logger.Debug("tunnel request parse failed, dropping", "host", host, "error", err)
		return
	}
	if err := h.store.SaveRequest(capturedReq); err != nil {
		logger.Warn("failed to persist tunneled request", "error", err)
		return
	}

	if len(rawResponse) == 0 {
		return
	}
	capturedResp, err := httpmsg.ResponseFromRaw(rawResponse)
	if err != nil {
		logger.Debug("tunnel response parse failed, dropping", "host", host, "error", err)
		return
	}
	if err := h.store.SaveResponse(capturedReq.ID, capturedResp); err != nil {
		logger.Warn("failed to persist tunneled response", "error", err)
	}
}

// writeErrorResponse writes a minimal HTTP error reply directly to conn.
func writeErrorResponse(conn net.Conn, status int, reason, diagnostic string) {
	body := diagnostic
	fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, reason, len(body), body)
}

// logType is the minimal logger surface the handler needs, satisfied by
// *slog.Logger; named here so handler methods don't import log/slog
// directly just to spell out the type.
type logType interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}
