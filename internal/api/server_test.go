package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kstvn/kestrel/internal/httpmsg"
)

type fakeSender struct {
	resp *httpmsg.Response
	err  error
}

func (f *fakeSender) Send(req *httpmsg.Request) (*httpmsg.Response, error) {
	return f.resp, f.err
}

func newTestServer(t *testing.T, sender Sender) (*httptest.Server, *httpmsg.Store) {
	t.Helper()
	store, err := httpmsg.OpenStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := NewServer(store, sender)
	return httptest.NewServer(s.Handler()), store
}

func seedRequest(t *testing.T, store *httpmsg.Store) *httpmsg.Request {
	t.Helper()
	headers := httpmsg.NewHeaders()
	headers.Set("Host", "example.com")
	query := httpmsg.NewParams()
	query.Add("id", "7")
	req := httpmsg.RequestFromFields("GET", "example.com", 80, "/a", false, headers, query, httpmsg.NewParams(), httpmsg.NewCookies(), nil)
	require.NoError(t, store.SaveRequest(req))
	return req
}

func TestHandleListRequests(t *testing.T) {
	srv, store := newTestServer(t, nil)
	defer srv.Close()
	seedRequest(t, store)

	resp, err := http.Get(srv.URL + "/requests")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []requestDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, "/a", got[0].Path)
}

func TestHandleGetRequest_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/requests/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetRequest_Found(t *testing.T) {
	srv, store := newTestServer(t, nil)
	defer srv.Close()
	req := seedRequest(t, store)

	resp, err := http.Get(srv.URL + "/requests/" + itoa(req.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got requestDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, req.ID, got.ID)
	require.Equal(t, "example.com", got.Host)
}

func TestHandleListResponses_Empty(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/responses")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []responseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 0)
}

func TestHandleGetResponse_Found(t *testing.T) {
	srv, store := newTestServer(t, nil)
	defer srv.Close()
	req := seedRequest(t, store)

	respHeaders := httpmsg.NewHeaders()
	saved := httpmsg.ResponseFromFields(200, "OK", respHeaders, httpmsg.NewCookies(), []byte("hi"))
	require.NoError(t, store.SaveResponse(req.ID, saved))

	resp, err := http.Get(srv.URL + "/responses/" + itoa(saved.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got responseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, 200, got.StatusCode)
	require.Equal(t, "hi", got.Body)
}

func TestHandleRepeat_ReturnsReplayedResponse(t *testing.T) {
	canned := httpmsg.ResponseFromFields(200, "OK", httpmsg.NewHeaders(), httpmsg.NewCookies(), []byte("replayed"))
	srv, store := newTestServer(t, &fakeSender{resp: canned})
	defer srv.Close()
	req := seedRequest(t, store)

	resp, err := http.Get(srv.URL + "/repeat/" + itoa(req.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got responseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "replayed", got.Body)
}

func TestHandleRepeat_UndecodableBodyYields501(t *testing.T) {
	canned := httpmsg.ResponseFromFields(200, "OK", httpmsg.NewHeaders(), httpmsg.NewCookies(), []byte{0xff, 0xfe, 0x00, 0x80})
	srv, store := newTestServer(t, &fakeSender{resp: canned})
	defer srv.Close()
	req := seedRequest(t, store)

	resp, err := http.Get(srv.URL + "/repeat/" + itoa(req.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHandleRepeat_UnknownIDYields404(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSender{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/repeat/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleScan_ReportsFindings(t *testing.T) {
	baseline := httpmsg.ResponseFromFields(200, "OK", httpmsg.NewHeaders(), httpmsg.NewCookies(), make([]byte, 500))
	diverging := httpmsg.ResponseFromFields(500, "Internal Server Error", httpmsg.NewHeaders(), httpmsg.NewCookies(), make([]byte, 80))
	sender := &scanSequenceSender{baseline: baseline, diverging: diverging}
	srv, store := newTestServer(t, sender)
	defer srv.Close()
	req := seedRequest(t, store)

	resp, err := http.Get(srv.URL + "/scan/" + itoa(req.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var findings []findingDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&findings))
	require.NotEmpty(t, findings)
	require.Equal(t, "query", findings[0].Location)
	require.Equal(t, "id", findings[0].Name)
}

// scanSequenceSender returns the baseline response for the first Send call
// (the scanner's own baseline fetch) and the diverging response for every
// mutated variant after that, so every variant is reported as a finding
// and the query-param mutation comes first.
type scanSequenceSender struct {
	baseline, diverging *httpmsg.Response
	calls               int
}

func (s *scanSequenceSender) Send(req *httpmsg.Request) (*httpmsg.Response, error) {
	s.calls++
	if s.calls == 1 {
		return s.baseline, nil
	}
	return s.diverging, nil
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
