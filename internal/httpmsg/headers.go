package httpmsg

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ProxyConnectionHeader is stripped from every captured request during
// normalization.
const ProxyConnectionHeader = "Proxy-Connection"

// Headers is an insertion-order-preserving header mapping with
// case-insensitive lookup but original casing retained on emit.
type Headers struct {
	om    *orderedmap.OrderedMap[string, string]
	index map[string]string // lower(name) -> canonical name as stored in om
}

// NewHeaders returns an empty header mapping.
func NewHeaders() *Headers {
	return &Headers{
		om:    orderedmap.New[string, string](),
		index: map[string]string{},
	}
}

// Set inserts or updates a header, preserving the casing of the first Set
// call for a given name and this call's position for new names.
func (h *Headers) Set(name, value string) {
	lower := strings.ToLower(name)
	if canon, ok := h.index[lower]; ok {
		h.om.Set(canon, value)
		return
	}
	h.index[lower] = name
	h.om.Set(name, value)
}

// Get returns the header value by case-insensitive name.
func (h *Headers) Get(name string) (string, bool) {
	canon, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.om.Get(canon)
}

// Has reports whether a header with this name (case-insensitive) is set.
func (h *Headers) Has(name string) bool {
	_, ok := h.index[strings.ToLower(name)]
	return ok
}

// Del removes a header by case-insensitive name.
func (h *Headers) Del(name string) {
	lower := strings.ToLower(name)
	canon, ok := h.index[lower]
	if !ok {
		return
	}
	h.om.Delete(canon)
	delete(h.index, lower)
}

// Len returns the number of headers.
func (h *Headers) Len() int { return h.om.Len() }

// Range calls fn for each header in insertion order.
func (h *Headers) Range(fn func(name, value string)) {
	for pair := h.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent deep copy.
func (h *Headers) Clone() *Headers {
	clone := NewHeaders()
	h.Range(func(name, value string) {
		clone.om.Set(name, value)
		clone.index[strings.ToLower(name)] = name
	})
	return clone
}

// MarshalJSON emits the mapping as a JSON object in insertion order.
func (h *Headers) MarshalJSON() ([]byte, error) {
	return h.om.MarshalJSON()
}

// UnmarshalJSON rebuilds the mapping from a JSON object, preserving the
// key order as it appears in the JSON text.
func (h *Headers) UnmarshalJSON(data []byte) error {
	om := orderedmap.New[string, string]()
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	index := make(map[string]string, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		index[strings.ToLower(pair.Key)] = pair.Key
	}
	h.om = om
	h.index = index
	return nil
}
