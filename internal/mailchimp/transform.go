package mailchimp

import (
	"fmt"
	"strings"
	"time"
)

// FieldTransformer converts a merge-field value between the local and the
// provider representation and decides whether two representations differ.
type FieldTransformer interface {
	ToRemote(v any) any
	ToLocal(v any) any
	Changed(local, remote any) bool
}

// CleanEmail normalizes an address the way it is keyed remotely.
func CleanEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// trimTransformer trims surrounding whitespace on string values.
type trimTransformer struct{}

func (trimTransformer) ToRemote(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func (t trimTransformer) ToLocal(v any) any { return t.ToRemote(v) }

func (t trimTransformer) Changed(local, remote any) bool {
	return t.ToRemote(local) != t.ToRemote(remote)
}

// lowercaseTransformer lowercases string values, used for email-like fields.
type lowercaseTransformer struct{}

func (lowercaseTransformer) ToRemote(v any) any {
	if s, ok := v.(string); ok {
		return CleanEmail(s)
	}
	return v
}

func (t lowercaseTransformer) ToLocal(v any) any { return t.ToRemote(v) }

func (t lowercaseTransformer) Changed(local, remote any) bool {
	return t.ToRemote(local) != t.ToRemote(remote)
}

// dateTransformer renders time values in the provider's merge-field date
// format (YYYY-MM-DD) and parses them back.
type dateTransformer struct{}

func (dateTransformer) ToRemote(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return v
}

func (dateTransformer) ToLocal(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return v
}

func (d dateTransformer) Changed(local, remote any) bool {
	return fmt.Sprintf("%v", d.ToRemote(local)) != fmt.Sprintf("%v", d.ToRemote(remote))
}

// builtinTransformers is the registry the provider config refers to by name.
var builtinTransformers = map[string]FieldTransformer{
	"trim":      trimTransformer{},
	"lowercase": lowercaseTransformer{},
	"date":      dateTransformer{},
}

func resolveTransformers(names map[string]string) (map[string]FieldTransformer, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[string]FieldTransformer, len(names))
	for field, name := range names {
		tr, ok := builtinTransformers[name]
		if !ok {
			return nil, fmt.Errorf("field %s: %w: %s", field, ErrUnknownTransformer, name)
		}
		out[field] = tr
	}
	return out, nil
}
