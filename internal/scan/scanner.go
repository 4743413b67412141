package scan

import (
	"fmt"

	"github.com/kstvn/kestrel/internal/httpmsg"
)

// FindingType is the fixed vulnerability label every finding is tagged
// with -- the scanner only ever looks for one thing.
const FindingType = "SQL Injection"

// Sender re-issues a request and returns the upstream's response, the same
// outbound path the connection handler uses for plain proxying. The scanner
// depends on this interface rather than the proxy package directly to stay
// free of any net/tls machinery.
type Sender interface {
	Send(req *httpmsg.Request) (*httpmsg.Response, error)
}

// Finding is one candidate vulnerability the scanner flagged: the injection
// point whose mutated response diverged from the baseline.
type Finding struct {
	Location Location
	Name     string
	Type     string
}

// Scanner drives the injection iterator against a sender and diffs each
// mutated response against the unmodified baseline.
type Scanner struct {
	sender Sender
}

// New returns a Scanner that re-issues requests through sender.
func New(sender Sender) *Scanner {
	return &Scanner{sender: sender}
}

// Scan re-issues req unmodified to obtain a baseline response, then
// re-issues every injection-point variant the iterator generates, flagging any whose
// response diverges from the baseline (per httpmsg.Response.Equal). A
// variant whose re-issue itself errors (e.g. upstream unreachable) is
// skipped, not treated as a finding. Findings are returned in iteration
// order; no deduplication, no severity, no scoring.
func (s *Scanner) Scan(req *httpmsg.Request) ([]Finding, error) {
	baseline, err := s.sender.Send(req)
	if err != nil {
		return nil, fmt.Errorf("scan: issuing baseline request: %w", err)
	}

	it := NewIterator(req)
	var findings []Finding
	for {
		mutated, point, ok := it.Next()
		if !ok {
			break
		}
		resp, err := s.sender.Send(mutated)
		if err != nil {
			continue
		}
		if !resp.Equal(baseline) {
			findings = append(findings, Finding{
				Location: point.Location,
				Name:     point.Name,
				Type:     FindingType,
			})
		}
	}
	return findings, nil
}
