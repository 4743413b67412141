package httpmsg

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"strconv"
	"testing"
)

func TestResponseFromRawPlain(t *testing.T) {
	body := "hello world"
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"Set-Cookie: session=xyz; Path=/; HttpOnly\r\n" +
		"\r\n" + body
	resp, err := ResponseFromRaw([]byte(raw))
	if err != nil {
		t.Fatalf("ResponseFromRaw: %v", err)
	}
	if resp.StatusCode != 200 || resp.Reason != "OK" {
		t.Errorf("status = %d %q, want 200 OK", resp.StatusCode, resp.Reason)
	}
	if string(resp.Body) != body {
		t.Errorf("Body = %q, want %q", resp.Body, body)
	}
	if v, ok := resp.Cookies.Get("session"); !ok || v != "xyz" {
		t.Errorf("Cookies[session] = %q, ok=%v, want xyz/true", v, ok)
	}
}

func TestResponseFromRawGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("compressed body")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Encoding: gzip\r\n" +
		"Content-Length: " + strconv.Itoa(buf.Len()) + "\r\n" +
		"\r\n"
	full := append([]byte(raw), buf.Bytes()...)

	resp, err := ResponseFromRaw(full)
	if err != nil {
		t.Fatalf("ResponseFromRaw: %v", err)
	}
	if !resp.GzipDecoded {
		t.Fatal("expected GzipDecoded to be true")
	}
	if string(resp.Body) != "compressed body" {
		t.Errorf("Body = %q, want decompressed text", resp.Body)
	}
}

func TestResponseFromRawGzipFallsBackOnBadData(t *testing.T) {
	body := "not actually gzip"
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Encoding: gzip\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body
	resp, err := ResponseFromRaw([]byte(raw))
	if err != nil {
		t.Fatalf("ResponseFromRaw: %v", err)
	}
	if resp.GzipDecoded {
		t.Error("GzipDecoded should be false when the body does not actually decompress")
	}
	if string(resp.Body) != body {
		t.Errorf("Body should fall back to the raw bytes, got %q", resp.Body)
	}
}

func TestResponseEqual(t *testing.T) {
	a := ResponseFromFields(200, "OK", NewHeaders(), NewCookies(), []byte("hello"))
	b := ResponseFromFields(200, "OK", NewHeaders(), NewCookies(), []byte("world"))
	c := ResponseFromFields(404, "Not Found", NewHeaders(), NewCookies(), []byte("hello"))

	if !a.Equal(b) {
		t.Error("responses with the same status and body length should be Equal")
	}
	if a.Equal(c) {
		t.Error("responses with different status codes should not be Equal")
	}
}

func TestResponseWriteToRoundTrip(t *testing.T) {
	raw := "HTTP/1.1 201 Created\r\nX-Custom: value\r\nContent-Length: 2\r\n\r\nok"
	resp, err := ResponseFromRaw([]byte(raw))
	if err != nil {
		t.Fatalf("ResponseFromRaw: %v", err)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := resp.WriteTo(w); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reparsed, err := ResponseFromRaw(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parsing emitted response: %v", err)
	}
	if reparsed.StatusCode != 201 || string(reparsed.Body) != "ok" {
		t.Errorf("got %d %q, want 201 ok", reparsed.StatusCode, reparsed.Body)
	}
	if v, ok := reparsed.Headers.Get("X-Custom"); !ok || v != "value" {
		t.Errorf("X-Custom header round-trip = %q, ok=%v", v, ok)
	}
}

func TestResponseFromRawChunked(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	resp, err := ResponseFromRaw([]byte(raw))
	if err != nil {
		t.Fatalf("ResponseFromRaw: %v", err)
	}
	if string(resp.Body) != "hello world" {
		t.Errorf("chunked body = %q, want %q", resp.Body, "hello world")
	}
}
