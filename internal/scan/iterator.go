// Package scan implements the injection-point iterator and the differential
// SQL-injection scanner that drives it: given a captured request, enumerate
// every (location, name, payload) mutation, re-issue each variant, and flag
// the ones whose response diverges from the unmodified baseline.
package scan

import (
	"fmt"

	"github.com/kstvn/kestrel/internal/httpmsg"
)

// Location names where an injection point lives, matching the inspection
// facade's scan-finding JSON field of the same name.
type Location string

const (
	LocationQuery  Location = "query"
	LocationForm   Location = "form"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
)

// singleQuote and doubleQuote are the two fixed payload suffixes every
// injection point is probed with.
const (
	singleQuote = "'"
	doubleQuote = "\""
)

// Point identifies one (location, name, payload) injection point generated
// from a captured request.
type Point struct {
	Location Location
	Name     string
	Payload  string
}

// Iterator enumerates every injection point of a base request in a fixed,
// deterministic order: query params, then form params, then headers
// (excluding Cookie), then cookies -- each yielded twice, once per payload
// suffix. The base request is never mutated; each call to Next returns an
// independent deep copy with exactly one field changed.
type Iterator struct {
	base   *httpmsg.Request
	points []Point
	index  int
}

// NewIterator builds the full, fixed-order point list for base up front, so
// Len is known immediately and Reset can restart the same sequence.
func NewIterator(base *httpmsg.Request) *Iterator {
	return &Iterator{base: base, points: buildPoints(base)}
}

func buildPoints(req *httpmsg.Request) []Point {
	var points []Point

	req.Query.Range(func(name string, value *httpmsg.ParamValue) {
		v := value.First()
		points = append(points,
			Point{Location: LocationQuery, Name: name, Payload: v + singleQuote},
			Point{Location: LocationQuery, Name: name, Payload: v + doubleQuote},
		)
	})

	req.Form.Range(func(name string, value *httpmsg.ParamValue) {
		v := value.First()
		points = append(points,
			Point{Location: LocationForm, Name: name, Payload: v + singleQuote},
			Point{Location: LocationForm, Name: name, Payload: v + doubleQuote},
		)
	})

	req.Headers.Range(func(name, value string) {
		if name == httpmsg.CookieHeader {
			return
		}
		points = append(points,
			Point{Location: LocationHeader, Name: name, Payload: value + singleQuote},
			Point{Location: LocationHeader, Name: name, Payload: value + doubleQuote},
		)
	})

	req.Cookies.Range(func(name, value string) {
		points = append(points,
			Point{Location: LocationCookie, Name: name, Payload: value + singleQuote},
			Point{Location: LocationCookie, Name: name, Payload: value + doubleQuote},
		)
	})

	return points
}

// Len returns the total number of injection points: 2*(N+M+H+K) for N query
// params, M form params, H headers (Cookie excluded), K cookies.
func (it *Iterator) Len() int { return len(it.points) }

// Points returns the fixed point sequence, for resolving a finding's index
// back to its (location, name) after the fact.
func (it *Iterator) Points() []Point { return it.points }

// Reset restarts the iteration from the beginning; the sequence produced is
// identical to the first pass.
func (it *Iterator) Reset() { it.index = 0 }

// Next returns the next mutated request and the point that produced it, and
// false once the sequence is exhausted.
func (it *Iterator) Next() (*httpmsg.Request, Point, bool) {
	if it.index >= len(it.points) {
		return nil, Point{}, false
	}
	point := it.points[it.index]
	it.index++
	return it.apply(point), point, true
}

// apply deep-copies base and mutates exactly the one field point names.
func (it *Iterator) apply(point Point) *httpmsg.Request {
	mutated := it.base.Clone()
	switch point.Location {
	case LocationQuery:
		mutated.Query.Set(point.Name, point.Payload)
	case LocationForm:
		mutated.Form.Set(point.Name, point.Payload)
	case LocationHeader:
		mutated.Headers.Set(point.Name, point.Payload)
	case LocationCookie:
		// Rewriting the cookie jar is sufficient: Request.WriteTo re-derives
		// the Cookie header from the jar on emit, so jar and header never
		// fall out of sync (see httpmsg.Request.WriteTo).
		mutated.Cookies.Set(point.Name, point.Payload)
	default:
		panic(fmt.Sprintf("scan: unknown injection point location %q", point.Location))
	}
	return mutated
}
