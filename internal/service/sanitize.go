package service

import (
	"html"

	"github.com/pinkalP4120/order-metafields/internal/domain"
)

// Sanitizer HTML-escapes submitted text so values can be rendered by the storefront theme
// as typed. Markup is kept, escaped, never stripped.
type Sanitizer struct {
	enabled bool
}

// NewSanitizer returns a Sanitizer; a disabled one returns input unchanged
func NewSanitizer(enabled bool) *Sanitizer {
	return &Sanitizer{enabled: enabled}
}

// String escapes a single string
func (s *Sanitizer) String(in string) string {
	if !s.enabled {
		return in
	}
	return html.EscapeString(in)
}

// Value escapes every string inside a decoded JSON value
func (s *Sanitizer) Value(v any) any {
	if !s.enabled {
		return v
	}
	switch t := v.(type) {
	case string:
		return html.EscapeString(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = s.Value(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[html.EscapeString(k)] = s.Value(e)
		}
		return out
	default:
		return t
	}
}

// Fields escapes keys and values, keeping order
func (s *Sanitizer) Fields(fs domain.FieldSet) domain.FieldSet {
	if !s.enabled {
		return fs
	}
	out := make(domain.FieldSet, 0, len(fs))
	for _, f := range fs {
		out.Set(html.EscapeString(f.Key), s.Value(f.Value))
	}
	return out
}
