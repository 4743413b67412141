package httpmsg

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CookieHeader is the name of the request header cookies are parsed from.
const CookieHeader = "Cookie"

// SetCookieHeader is the name of the response header set-cookies are parsed
// from.
const SetCookieHeader = "Set-Cookie"

// Cookies is an insertion-order-preserving name -> value mapping, used for
// both the request Cookie jar and the response Set-Cookie mapping. Only the
// name and value are kept; attributes (Path, Expires, ...) are discarded,
// matching the simple mapping the data model requires.
type Cookies struct {
	om *orderedmap.OrderedMap[string, string]
}

// NewCookies returns an empty cookie mapping.
func NewCookies() *Cookies {
	return &Cookies{om: orderedmap.New[string, string]()}
}

// Set inserts or updates a cookie value.
func (c *Cookies) Set(name, value string) { c.om.Set(name, value) }

// Get returns a cookie's value.
func (c *Cookies) Get(name string) (string, bool) { return c.om.Get(name) }

// Len returns the number of cookies.
func (c *Cookies) Len() int { return c.om.Len() }

// Range calls fn for each cookie in insertion order.
func (c *Cookies) Range(fn func(name, value string)) {
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent deep copy.
func (c *Cookies) Clone() *Cookies {
	clone := NewCookies()
	c.Range(func(name, value string) { clone.om.Set(name, value) })
	return clone
}

// MarshalJSON emits the mapping as a JSON object in insertion order.
func (c *Cookies) MarshalJSON() ([]byte, error) { return c.om.MarshalJSON() }

// UnmarshalJSON rebuilds the mapping, preserving JSON-text key order.
func (c *Cookies) UnmarshalJSON(data []byte) error {
	om := orderedmap.New[string, string]()
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	c.om = om
	return nil
}

// parseCookieHeader parses a `Cookie: a=1; b=2` header value, preserving
// wire order.
func parseCookieHeader(value string) *Cookies {
	cookies := NewCookies()
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, _ := strings.Cut(part, "=")
		cookies.Set(strings.TrimSpace(name), strings.TrimSpace(val))
	}
	return cookies
}

// renderCookieHeader reassembles a Cookie header value from a cookie jar,
// preserving insertion order.
func renderCookieHeader(cookies *Cookies) string {
	var b strings.Builder
	first := true
	cookies.Range(func(name, value string) {
		if !first {
			b.WriteString("; ")
		}
		first = false
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
	})
	return b.String()
}

// parseSetCookieValues parses the values of one or more Set-Cookie headers
// into a name -> value mapping (attributes discarded), preserving order.
func parseSetCookieValues(values []string) *Cookies {
	cookies := NewCookies()
	for _, v := range values {
		// Only the first ";"-delimited segment of a Set-Cookie value is the
		// name=value pair; the rest are attributes (Path, Expires, ...).
		segment := v
		if idx := strings.IndexByte(v, ';'); idx >= 0 {
			segment = v[:idx]
		}
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		name, val, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		cookies.Set(strings.TrimSpace(name), strings.TrimSpace(val))
	}
	return cookies
}
