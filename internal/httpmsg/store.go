package httpmsg

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store persists captured requests and responses using the pure-Go
// modernc.org/sqlite driver. A single process-wide write mutex is colocated
// with the handle: sqlite only safely serializes one writer at a time and
// the proxy handles many connections concurrently, and the lock also keeps
// each LastInsertId read paired with its own INSERT.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if absent) the sqlite database at path, enables
// WAL mode for concurrent readers alongside the single writer, and ensures
// the request/response tables exist.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	const schema = `
CREATE TABLE IF NOT EXISTS request (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	method TEXT NOT NULL,
	host TEXT NOT NULL,
	port INTEGER NOT NULL,
	path TEXT NOT NULL,
	get_params TEXT NOT NULL,
	headers TEXT NOT NULL,
	cookies TEXT NOT NULL,
	body BLOB,
	post_params TEXT NOT NULL,
	is_https INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS response (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id INTEGER NOT NULL REFERENCES request(id),
	code INTEGER NOT NULL,
	message TEXT NOT NULL,
	headers TEXT NOT NULL,
	set_cookie TEXT NOT NULL,
	body BLOB
);

CREATE INDEX IF NOT EXISTS idx_response_request_id ON response(request_id);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// SaveRequest inserts req and sets req.ID to the assigned row id.
func (s *Store) SaveRequest(req *Request) error {
	headersJSON, err := req.HeadersJSON()
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}
	queryJSON, err := req.QueryJSON()
	if err != nil {
		return fmt.Errorf("marshaling query params: %w", err)
	}
	formJSON, err := req.FormJSON()
	if err != nil {
		return fmt.Errorf("marshaling form params: %w", err)
	}
	cookiesJSON, err := req.CookiesJSON()
	if err != nil {
		return fmt.Errorf("marshaling cookies: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`INSERT INTO request (method, host, port, path, get_params, headers, cookies, body, post_params, is_https)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Method, req.Host, req.Port, req.Path,
		string(queryJSON), string(headersJSON), string(cookiesJSON), req.Body, string(formJSON), boolToInt(req.IsTLS),
	)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted request id: %w", err)
	}
	req.ID = id
	return nil
}

// SaveResponse inserts resp, associated with requestID, and sets resp.ID and
// resp.RequestID.
func (s *Store) SaveResponse(requestID int64, resp *Response) error {
	headersJSON, err := resp.HeadersJSON()
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}
	cookiesJSON, err := resp.CookiesJSON()
	if err != nil {
		return fmt.Errorf("marshaling cookies: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`INSERT INTO response (request_id, code, message, headers, set_cookie, body)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		requestID, resp.StatusCode, resp.Reason, string(headersJSON), string(cookiesJSON), resp.Body,
	)
	if err != nil {
		return fmt.Errorf("inserting response: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted response id: %w", err)
	}
	resp.ID = id
	resp.RequestID = requestID
	return nil
}

// LoadRequest fetches a single request by id.
func (s *Store) LoadRequest(id int64) (*Request, error) {
	row := s.db.QueryRow(
		`SELECT id, method, host, port, path, get_params, headers, cookies, body, post_params, is_https
		 FROM request WHERE id = ?`, id,
	)
	return scanRequest(row)
}

// ListRequests returns every persisted request, oldest first.
func (s *Store) ListRequests() ([]*Request, error) {
	rows, err := s.db.Query(
		`SELECT id, method, host, port, path, get_params, headers, cookies, body, post_params, is_https
		 FROM request ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// LoadResponse fetches a single response by its own id.
func (s *Store) LoadResponse(id int64) (*Response, error) {
	row := s.db.QueryRow(
		`SELECT id, request_id, code, message, headers, set_cookie, body
		 FROM response WHERE id = ?`, id,
	)
	return scanResponse(row)
}

// LoadResponseByRequestID fetches the response recorded for requestID, if
// any. Returns nil, nil when no response was saved (e.g. the upstream was
// unreachable).
func (s *Store) LoadResponseByRequestID(requestID int64) (*Response, error) {
	row := s.db.QueryRow(
		`SELECT id, request_id, code, message, headers, set_cookie, body
		 FROM response WHERE request_id = ?`, requestID,
	)
	resp, err := scanResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return resp, err
}

// ListResponses returns every persisted response, oldest first.
func (s *Store) ListResponses() ([]*Response, error) {
	rows, err := s.db.Query(
		`SELECT id, request_id, code, message, headers, set_cookie, body
		 FROM response ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	defer rows.Close()

	var out []*Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		id                                            int64
		method, host, path                            string
		port, isTLS                                   int
		queryJSON, headersJSON, cookiesJSON, formJSON string
		body                                          []byte
	)
	if err := row.Scan(&id, &method, &host, &port, &path, &queryJSON, &headersJSON, &cookiesJSON, &body, &formJSON, &isTLS); err != nil {
		return nil, err
	}
	return RequestFromRow(id, method, host, port, path, isTLS != 0, headersJSON, queryJSON, formJSON, cookiesJSON, body)
}

func scanResponse(row rowScanner) (*Response, error) {
	var (
		id, requestID      int64
		statusCode         int
		reason             string
		headersJSON        string
		cookiesJSON        string
		body               []byte
	)
	if err := row.Scan(&id, &requestID, &statusCode, &reason, &headersJSON, &cookiesJSON, &body); err != nil {
		return nil, err
	}
	return ResponseFromRow(id, requestID, statusCode, reason, headersJSON, cookiesJSON, body)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
