package api

import "github.com/kstvn/kestrel/internal/httpmsg"

// requestDTO is the JSON shape returned for a persisted request. Headers,
// Query, Form, and Cookies delegate their marshaling to httpmsg's own
// order-preserving mapping types, so wire order survives the round trip
// through the API the same way it survives the round trip through the
// store.
type requestDTO struct {
	ID      int64            `json:"id"`
	Method  string           `json:"method"`
	Host    string           `json:"host"`
	Port    int              `json:"port"`
	Path    string           `json:"path"`
	IsTLS   bool             `json:"is_https"`
	Headers *httpmsg.Headers `json:"headers"`
	Query   *httpmsg.Params  `json:"get_params"`
	Form    *httpmsg.Params  `json:"post_params"`
	Cookies *httpmsg.Cookies `json:"cookies"`
	Body    string           `json:"body,omitempty"`
}

func newRequestDTO(req *httpmsg.Request) requestDTO {
	return requestDTO{
		ID:      req.ID,
		Method:  req.Method,
		Host:    req.Host,
		Port:    req.Port,
		Path:    req.Path,
		IsTLS:   req.IsTLS,
		Headers: req.Headers,
		Query:   req.Query,
		Form:    req.Form,
		Cookies: req.Cookies,
		Body:    string(req.Body),
	}
}

// responseDTO is the JSON shape returned for a persisted or replayed
// response.
type responseDTO struct {
	ID         int64            `json:"id"`
	RequestID  int64            `json:"request_id"`
	StatusCode int              `json:"status_code"`
	Reason     string           `json:"reason"`
	Headers    *httpmsg.Headers `json:"headers"`
	Cookies    *httpmsg.Cookies `json:"set_cookie"`
	Body       string           `json:"body"`
}

func newResponseDTO(resp *httpmsg.Response) responseDTO {
	return responseDTO{
		ID:         resp.ID,
		RequestID:  resp.RequestID,
		StatusCode: resp.StatusCode,
		Reason:     resp.Reason,
		Headers:    resp.Headers,
		Cookies:    resp.Cookies,
		Body:       string(resp.Body),
	}
}

// findingDTO is one candidate SQL-injection point reported by /scan/{id}.
type findingDTO struct {
	Location string `json:"location"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}
