package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/kstvn/kestrel/internal/scan"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleListRequests(w http.ResponseWriter, _ *http.Request) {
	reqs, err := s.store.ListRequests()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]requestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = newRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, err := s.store.LoadRequest(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newRequestDTO(req))
}

func (s *Server) handleListResponses(w http.ResponseWriter, _ *http.Request) {
	resps, err := s.store.ListResponses()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]responseDTO, len(resps))
	for i, resp := range resps {
		dtos[i] = newResponseDTO(resp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid response id")
		return
	}
	resp, err := s.store.LoadResponse(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "response not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResponseDTO(resp))
}

// handleRepeat implements GET /repeat/{id}: reconstruct the captured
// request and re-issue it via the outbound path shared with the live proxy
// and the scanner. 501 if the response body cannot be decoded to text,
// since the JSON representation has no other way to carry arbitrary bytes.
func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, err := s.store.LoadRequest(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := s.sender.Send(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if !utf8.Valid(resp.Body) {
		writeError(w, http.StatusNotImplemented, "response body is not decodable to text")
		return
	}
	writeJSON(w, http.StatusOK, newResponseDTO(resp))
}

// handleScan implements GET /scan/{id}: run the differential scanner
// against the captured request and report candidate injection points.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, err := s.store.LoadRequest(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scanner := scan.New(s.sender)
	findings, err := scanner.Scan(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	dtos := make([]findingDTO, len(findings))
	for i, f := range findings {
		dtos[i] = findingDTO{Location: string(f.Location), Name: f.Name, Type: f.Type}
	}
	writeJSON(w, http.StatusOK, dtos)
}
