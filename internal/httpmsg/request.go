package httpmsg

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// MalformedRequestError is returned when a request cannot be normalized:
// neither an absolute-URI target nor a Host header yields a usable host, or
// the request line itself is unreadable. The proxy handler maps this to a
// 400 response without ever reaching the upstream.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("httpmsg: malformed request: %s", e.Reason)
}

// Request is the normalized, order-preserving view of a captured HTTP
// request, regardless of which entry point produced it.
type Request struct {
	ID      int64
	Method  string
	Host    string
	Port    int
	Path    string
	IsTLS   bool
	Headers *Headers
	Query   *Params
	Form    *Params
	Cookies *Cookies
	Body    []byte
}

// RequestFromHandler builds a Request by reading one HTTP message directly
// off a live connection's buffered reader -- the plain-proxy entry point.
func RequestFromHandler(br *bufio.Reader, isTLS bool) (*Request, error) {
	return parseRequest(br, isTLS)
}

// RequestFromRaw builds a Request by parsing raw bytes accumulated from a
// relayed CONNECT tunnel -- the tunnel entry point. Parsing semantics are
// identical to RequestFromHandler once the bytes are framed into a reader.
func RequestFromRaw(raw []byte, isTLS bool) (*Request, error) {
	return parseRequest(bufio.NewReader(bytes.NewReader(raw)), isTLS)
}

// RequestFromFields builds a Request directly from already-known field
// values, used by the injection iterator to construct mutated variants
// without re-parsing wire bytes.
func RequestFromFields(method, host string, port int, path string, isTLS bool, headers *Headers, query, form *Params, cookies *Cookies, body []byte) *Request {
	return &Request{
		Method:  method,
		Host:    host,
		Port:    port,
		Path:    path,
		IsTLS:   isTLS,
		Headers: headers,
		Query:   query,
		Form:    form,
		Cookies: cookies,
		Body:    body,
	}
}

// RequestFromRow reconstructs a Request from its persisted column values,
// used when loading rows back out of the store.
func RequestFromRow(id int64, method, host string, port int, path string, isTLS bool, headersJSON, queryJSON, formJSON, cookiesJSON string, body []byte) (*Request, error) {
	headers := NewHeaders()
	if err := headers.UnmarshalJSON([]byte(headersJSON)); err != nil {
		return nil, fmt.Errorf("unmarshaling headers: %w", err)
	}
	query := NewParams()
	if err := query.UnmarshalJSON([]byte(queryJSON)); err != nil {
		return nil, fmt.Errorf("unmarshaling query params: %w", err)
	}
	form := NewParams()
	if err := form.UnmarshalJSON([]byte(formJSON)); err != nil {
		return nil, fmt.Errorf("unmarshaling form params: %w", err)
	}
	cookies := NewCookies()
	if err := cookies.UnmarshalJSON([]byte(cookiesJSON)); err != nil {
		return nil, fmt.Errorf("unmarshaling cookies: %w", err)
	}
	return &Request{
		ID:      id,
		Method:  method,
		Host:    host,
		Port:    port,
		Path:    path,
		IsTLS:   isTLS,
		Headers: headers,
		Query:   query,
		Form:    form,
		Cookies: cookies,
		Body:    body,
	}, nil
}

func parseRequest(br *bufio.Reader, isTLS bool) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("reading request line: %w", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, &MalformedRequestError{Reason: fmt.Sprintf("bad request line %q", line)}
	}
	method, target := parts[0], parts[1]

	headers, err := readHeaderBlock(br)
	if err != nil {
		return nil, fmt.Errorf("reading headers: %w", err)
	}
	headers.Del(ProxyConnectionHeader)

	body, err := readBody(br, headers)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return normalizeRequest(method, target, headers, body, isTLS)
}

func normalizeRequest(method, target string, headers *Headers, body []byte, isTLS bool) (*Request, error) {
	req := &Request{
		Method:  method,
		Headers: headers,
		Body:    body,
		IsTLS:   isTLS,
		Query:   NewParams(),
		Form:    NewParams(),
		Cookies: NewCookies(),
	}

	if strings.EqualFold(method, "CONNECT") {
		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("bad CONNECT target %q", target)}
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("bad CONNECT port %q", portStr)}
		}
		req.Host, req.Port, req.Path = host, port, ""
		return req, nil
	}

	if u, err := url.Parse(target); err == nil && u.IsAbs() && u.Host != "" {
		host, portStr := u.Hostname(), u.Port()
		port := defaultPort(isTLS)
		if portStr != "" {
			p, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, &MalformedRequestError{Reason: fmt.Sprintf("bad port in target %q", target)}
			}
			port = p
		}
		headers.Set("Host", u.Host)
		req.Host, req.Port = host, port
		req.Path = orDefaultPath(u.Path)
		req.Query = parseOrderedQuery(u.RawQuery)
	} else {
		hostHeader, ok := headers.Get("Host")
		if !ok || strings.TrimSpace(hostHeader) == "" {
			return nil, &MalformedRequestError{Reason: "no absolute-URI target and no Host header"}
		}
		host, port, err := splitHostHeader(hostHeader, isTLS)
		if err != nil {
			return nil, &MalformedRequestError{Reason: fmt.Sprintf("bad Host header %q", hostHeader)}
		}
		req.Host, req.Port = host, port

		path := target
		if idx := strings.IndexByte(target, '?'); idx >= 0 {
			req.Path = orDefaultPath(target[:idx])
			req.Query = parseOrderedQuery(target[idx+1:])
		} else {
			req.Path = orDefaultPath(path)
		}
	}

	if cv, ok := headers.Get(CookieHeader); ok {
		req.Cookies = parseCookieHeader(cv)
	}

	if ct, ok := headers.Get("Content-Type"); ok && strings.Contains(strings.ToLower(ct), "application/x-www-form-urlencoded") && len(body) > 0 {
		req.Form = parseOrderedQuery(string(body))
	}

	return req, nil
}

func defaultPort(isTLS bool) int {
	if isTLS {
		return 443
	}
	return 80
}

func orDefaultPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// splitHostHeader splits a Host header into host and port, defaulting the
// port by scheme when the header carries no explicit one.
func splitHostHeader(hostHeader string, isTLS bool) (string, int, error) {
	if host, portStr, err := net.SplitHostPort(hostHeader); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, err
		}
		return host, port, nil
	}
	return hostHeader, defaultPort(isTLS), nil
}

// renderTarget reassembles the request-line target: path plus query string,
// in origin form, for re-emission to the upstream.
func (r *Request) renderTarget() string {
	var b strings.Builder
	if r.Path == "" {
		b.WriteString("/")
	} else {
		b.WriteString(r.Path)
	}
	if r.Query != nil && r.Query.Len() > 0 {
		b.WriteByte('?')
		b.WriteString(renderQuery(r.Query))
	}
	return b.String()
}

// renderQuery reassembles a query string from an ordered parameter mapping,
// preserving name order and repeated-name order.
func renderQuery(params *Params) string {
	var b strings.Builder
	first := true
	params.Range(func(name string, value *ParamValue) {
		for _, v := range value.Values() {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	})
	return b.String()
}

// WriteTo serializes the request back onto the wire in HTTP/1.1 origin
// form, headers in insertion order, for re-emission to the upstream. The
// Cookie header and, for form-encoded requests, the body are re-derived
// from the cookie jar and form mapping so a mutated mapping is what
// actually reaches the wire.
func (r *Request) WriteTo(w *bufio.Writer) error {
	headers := r.Headers.Clone()
	if r.Cookies != nil && r.Cookies.Len() > 0 {
		headers.Set(CookieHeader, renderCookieHeader(r.Cookies))
	}

	body := r.Body
	if r.Form != nil && r.Form.Len() > 0 {
		body = []byte(renderQuery(r.Form))
	}
	if len(body) > 0 || headers.Has("Content-Length") {
		headers.Set("Content-Length", strconv.Itoa(len(body)))
	}

	var requestLine string
	if strings.EqualFold(r.Method, "CONNECT") {
		requestLine = fmt.Sprintf("CONNECT %s:%d HTTP/1.1", r.Host, r.Port)
	} else {
		requestLine = fmt.Sprintf("%s %s HTTP/1.1", r.Method, r.renderTarget())
	}
	if _, err := fmt.Fprintf(w, "%s\r\n", requestLine); err != nil {
		return err
	}
	if err := writeHeaderBlock(w, headers); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Clone returns a deep copy, used by the injection iterator so each mutated
// variant is independent of the baseline request.
func (r *Request) Clone() *Request {
	return &Request{
		ID:      r.ID,
		Method:  r.Method,
		Host:    r.Host,
		Port:    r.Port,
		Path:    r.Path,
		IsTLS:   r.IsTLS,
		Headers: r.Headers.Clone(),
		Query:   r.Query.Clone(),
		Form:    r.Form.Clone(),
		Cookies: r.Cookies.Clone(),
		Body:    append([]byte(nil), r.Body...),
	}
}

// HeadersJSON, QueryJSON, FormJSON, CookiesJSON marshal the corresponding
// mapping for persistence as a store column.
func (r *Request) HeadersJSON() ([]byte, error) { return r.Headers.MarshalJSON() }
func (r *Request) QueryJSON() ([]byte, error)   { return r.Query.MarshalJSON() }
func (r *Request) FormJSON() ([]byte, error)    { return r.Form.MarshalJSON() }
func (r *Request) CookiesJSON() ([]byte, error) { return r.Cookies.MarshalJSON() }
