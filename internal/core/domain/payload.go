package domain

import (
	"encoding/json"
	"fmt"
)

// Payload is an opaque serialized payload, typically a JSON object. Its
// structure is owned by the handler that produced it; the framework never
// interprets it beyond the attribute lookups below.
type Payload string

func (p Payload) String() string {
	return string(p)
}

// Attribute looks up a top-level field of a JSON-object payload. The second
// return is false when the payload is not a JSON object or the key is
// absent. Non-string values are returned re-serialized.
func (p Payload) Attribute(key string) (string, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(p), &fields); err != nil {
		return "", false
	}
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// RequireAttribute is Attribute for callers that treat absence as fatal.
func (p Payload) RequireAttribute(key string) (string, error) {
	v, ok := p.Attribute(key)
	if !ok {
		return "", &AttributeNotFoundError{Key: key}
	}
	return v, nil
}

// AttributeNotFoundError reports a payload attribute a handler asked for
// but the payload lacks.
type AttributeNotFoundError struct {
	Key string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found in payload", e.Key)
}
