package proxy

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/kstvn/kestrel/internal/httpmsg"
)

// dialTimeout bounds how long the outbound path waits to open a connection
// to an upstream host before classifying the failure as unreachable.
const dialTimeout = 10 * time.Second

// Outbound is the shared "re-issue a captured request and get its response
// back" path: dial the request's (host, port), write the request, read the
// response. It backs both the live plain-proxy handler and, via the
// scan.Sender interface, replay and the differential scanner.
type Outbound struct{}

// NewOutbound returns an Outbound ready to send requests.
func NewOutbound() *Outbound { return &Outbound{} }

// Send implements scan.Sender.
func (o *Outbound) Send(req *httpmsg.Request) (*httpmsg.Response, error) {
	return sendRequest(req)
}

func sendRequest(req *httpmsg.Request) (*httpmsg.Response, error) {
	addr := fmt.Sprintf("%s:%d", req.Host, req.Port)

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &DialError{Host: req.Host, Port: req.Port, Err: err}
	}
	if req.IsTLS {
		// The TCP connection is already open here, so a failed handshake is
		// an upstream failure rather than a dial failure.
		tlsConn := tls.Client(conn, &tls.Config{ServerName: req.Host})
		_ = conn.SetDeadline(time.Now().Add(dialTimeout))
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, &UpstreamError{Host: req.Host, Port: req.Port, Err: err}
		}
		_ = conn.SetDeadline(time.Time{})
		conn = tlsConn
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := req.WriteTo(w); err != nil {
		return nil, &UpstreamError{Host: req.Host, Port: req.Port, Err: err}
	}

	resp, err := httpmsg.ResponseFromConn(bufio.NewReader(conn))
	if err != nil {
		return nil, &UpstreamError{Host: req.Host, Port: req.Port, Err: err}
	}
	return resp, nil
}
