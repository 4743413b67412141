package httpmsg

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestFromHandlerPlainGet(t *testing.T) {
	raw := "GET http://example.com/search?q=hello&q=world HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Proxy-Connection: keep-alive\r\n" +
		"Cookie: session=abc; theme=dark\r\n" +
		"\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	req, err := RequestFromHandler(br, false)
	if err != nil {
		t.Fatalf("RequestFromHandler: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if req.Host != "example.com" || req.Port != 80 {
		t.Errorf("Host/Port = %q/%d, want example.com/80", req.Host, req.Port)
	}
	if req.Path != "/search" {
		t.Errorf("Path = %q, want /search", req.Path)
	}
	if req.Headers.Has(ProxyConnectionHeader) {
		t.Error("Proxy-Connection header should have been stripped")
	}
	if v, ok := req.Query.Get("q"); !ok || v != "hello" {
		t.Errorf("Query[q] first value = %q, ok=%v, want hello/true", v, ok)
	}
	if session, ok := req.Cookies.Get("session"); !ok || session != "abc" {
		t.Errorf("Cookies[session] = %q, ok=%v, want abc/true", session, ok)
	}
}

func TestFromHandlerMissingHost(t *testing.T) {
	raw := "GET /only-a-path HTTP/1.1\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	_, err := RequestFromHandler(br, false)
	if err == nil {
		t.Fatal("expected an error for a request with neither absolute URI nor Host header")
	}
	var malformed *MalformedRequestError
	if !errors.As(err, &malformed) {
		t.Errorf("error = %v, want *MalformedRequestError", err)
	}
}

func TestFromHandlerConnect(t *testing.T) {
	raw := "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	req, err := RequestFromHandler(br, false)
	if err != nil {
		t.Fatalf("RequestFromHandler: %v", err)
	}
	if req.Method != "CONNECT" || req.Host != "example.com" || req.Port != 443 {
		t.Errorf("got %s %s:%d, want CONNECT example.com:443", req.Method, req.Host, req.Port)
	}
}

func TestFromHandlerFormBody(t *testing.T) {
	body := "username=admin&password=hunter2"
	raw := "POST /login HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body
	br := bufio.NewReader(strings.NewReader(raw))

	req, err := RequestFromHandler(br, false)
	if err != nil {
		t.Fatalf("RequestFromHandler: %v", err)
	}
	if v, ok := req.Form.Get("username"); !ok || v != "admin" {
		t.Errorf("Form[username] = %q, ok=%v, want admin/true", v, ok)
	}
}

func TestRequestWriteToRoundTrip(t *testing.T) {
	raw := "GET http://example.com/path?a=1&b=2 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	req, err := RequestFromRaw([]byte(raw), false)
	if err != nil {
		t.Fatalf("RequestFromRaw: %v", err)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := req.WriteTo(w); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reparsed, err := RequestFromRaw(buf.Bytes(), false)
	if err != nil {
		t.Fatalf("re-parsing emitted request: %v", err)
	}
	if reparsed.Path != req.Path {
		t.Errorf("Path round-trip = %q, want %q", reparsed.Path, req.Path)
	}
	if v, _ := reparsed.Query.Get("a"); v != "1" {
		t.Errorf("Query[a] round-trip = %q, want 1", v)
	}
}

func TestRequestWriteToRerendersMutatedForm(t *testing.T) {
	body := "username=admin&password=hunter2"
	raw := "POST http://example.com/login HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body
	req, err := RequestFromRaw([]byte(raw), false)
	if err != nil {
		t.Fatalf("RequestFromRaw: %v", err)
	}

	req.Form.Set("username", "admin'")

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := req.WriteTo(w); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reparsed, err := RequestFromRaw(buf.Bytes(), false)
	if err != nil {
		t.Fatalf("re-parsing emitted request: %v", err)
	}
	if v, _ := reparsed.Form.Get("username"); v != "admin'" {
		t.Errorf("emitted form[username] = %q, want the mutated value admin'", v)
	}
	if cl, _ := reparsed.Headers.Get("Content-Length"); cl != strconv.Itoa(len(reparsed.Body)) {
		t.Errorf("Content-Length = %q does not match emitted body length %d", cl, len(reparsed.Body))
	}
}

func TestRequestCloneIndependence(t *testing.T) {
	req, err := RequestFromRaw([]byte("GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n"), false)
	if err != nil {
		t.Fatalf("RequestFromRaw: %v", err)
	}
	clone := req.Clone()
	clone.Headers.Set("X-Injected", "1")
	if req.Headers.Has("X-Injected") {
		t.Error("mutating clone's headers should not affect the original")
	}
}
