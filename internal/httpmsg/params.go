package httpmsg

import (
	"encoding/json"
	"net/url"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ParamValue holds the value(s) of one query- or form-parameter name. A name
// that appears once keeps a scalar; a repeated name keeps an ordered list,
// matching the wire-order-preserving rule the data model requires.
type ParamValue struct {
	values []string
}

// NewParamValue wraps a single value.
func NewParamValue(v string) *ParamValue { return &ParamValue{values: []string{v}} }

// Add appends another occurrence of the same name.
func (p *ParamValue) Add(v string) { p.values = append(p.values, v) }

// First returns the first (or only) value, or "" if empty.
func (p *ParamValue) First() string {
	if len(p.values) == 0 {
		return ""
	}
	return p.values[0]
}

// Values returns every occurrence, in wire order.
func (p *ParamValue) Values() []string { return p.values }

// Set replaces all values with a single scalar value.
func (p *ParamValue) Set(v string) { p.values = []string{v} }

// Single reports whether this name occurred exactly once.
func (p *ParamValue) Single() bool { return len(p.values) <= 1 }

// MarshalJSON emits a bare string for a single value, or a JSON array for a
// repeated one.
func (p *ParamValue) MarshalJSON() ([]byte, error) {
	if p.Single() {
		return json.Marshal(p.First())
	}
	return json.Marshal(p.values)
}

// UnmarshalJSON accepts either a bare string or a JSON array of strings.
func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.values = []string{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	p.values = list
	return nil
}

// Params is an insertion-order-preserving name -> ParamValue mapping, used
// for both query-parameters and form-parameters.
type Params struct {
	om *orderedmap.OrderedMap[string, *ParamValue]
}

// NewParams returns an empty parameter mapping.
func NewParams() *Params {
	return &Params{om: orderedmap.New[string, *ParamValue]()}
}

// Add appends an occurrence of name=value, preserving wire order whether
// name is new or repeated.
func (p *Params) Add(name, value string) {
	if existing, ok := p.om.Get(name); ok {
		existing.Add(value)
		return
	}
	p.om.Set(name, NewParamValue(value))
}

// Set replaces name's value(s) with a single scalar value, used by the
// injection iterator to mutate one field.
func (p *Params) Set(name, value string) {
	if existing, ok := p.om.Get(name); ok {
		existing.Set(value)
		return
	}
	p.om.Set(name, NewParamValue(value))
}

// Get returns the first value for name.
func (p *Params) Get(name string) (string, bool) {
	v, ok := p.om.Get(name)
	if !ok {
		return "", false
	}
	return v.First(), true
}

// Has reports whether name is present.
func (p *Params) Has(name string) bool {
	_, ok := p.om.Get(name)
	return ok
}

// Len returns the number of distinct names.
func (p *Params) Len() int { return p.om.Len() }

// Range calls fn for each name in insertion order.
func (p *Params) Range(fn func(name string, value *ParamValue)) {
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent deep copy.
func (p *Params) Clone() *Params {
	clone := NewParams()
	p.Range(func(name string, value *ParamValue) {
		cp := make([]string, len(value.values))
		copy(cp, value.values)
		clone.om.Set(name, &ParamValue{values: cp})
	})
	return clone
}

// MarshalJSON emits the mapping as a JSON object in insertion order.
func (p *Params) MarshalJSON() ([]byte, error) { return p.om.MarshalJSON() }

// UnmarshalJSON rebuilds the mapping, preserving JSON-text key order.
func (p *Params) UnmarshalJSON(data []byte) error {
	om := orderedmap.New[string, *ParamValue]()
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	p.om = om
	return nil
}

// parseOrderedQuery parses an application/x-www-form-urlencoded string,
// preserving wire order of repeated names -- unlike url.ParseQuery, which
// returns an unordered map.
func parseOrderedQuery(raw string) *Params {
	params := NewParams()
	if raw == "" {
		return params
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		var name, value string
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name, value = pair[:idx], pair[idx+1:]
		} else {
			name = pair
		}
		name = queryUnescape(name)
		value = queryUnescape(value)
		params.Add(name, value)
	}
	return params
}

func queryUnescape(s string) string {
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}
