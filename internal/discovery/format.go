package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Aman-CERP/docchat/internal/session"
)

// Formatted is the normalized passages payload.
type Formatted struct {
	Results []session.Passage `json:"results"`
}

// FormatPassages normalizes the backend's "passages" field.
//
// Accepted shapes are an array of passage objects and an object with a
// "results" array. A passage's text is read from "text", falling back to
// "passage_text"; every other field is kept as metadata. An absent or null
// payload yields no results.
func FormatPassages(raw json.RawMessage) (Formatted, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Formatted{Results: []session.Passage{}}, nil
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Formatted{}, fmt.Errorf("failed to decode passages: %w", err)
		}
	case '{':
		var wrapped struct {
			Results *[]json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return Formatted{}, fmt.Errorf("failed to decode passages: %w", err)
		}
		if wrapped.Results == nil {
			return Formatted{}, fmt.Errorf("passages object has no results array")
		}
		items = *wrapped.Results
	default:
		return Formatted{}, fmt.Errorf("passages must be an array or object, got %.20q", trimmed)
	}

	results := make([]session.Passage, 0, len(items))
	for i, item := range items {
		p, err := decodePassage(item)
		if err != nil {
			return Formatted{}, fmt.Errorf("passage %d: %w", i, err)
		}
		results = append(results, p)
	}
	return Formatted{Results: results}, nil
}

func decodePassage(raw json.RawMessage) (session.Passage, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return session.Passage{}, fmt.Errorf("not an object: %w", err)
	}
	if fields == nil {
		return session.Passage{}, fmt.Errorf("not an object")
	}

	text, err := takeString(fields, "passage_text")
	if err != nil {
		return session.Passage{}, err
	}
	if _, ok := fields["text"]; ok {
		if text, err = takeString(fields, "text"); err != nil {
			return session.Passage{}, err
		}
	}

	p := session.Passage{Text: text}
	if len(fields) > 0 {
		p.Metadata = fields
	}
	return p, nil
}

// takeString removes key from fields and returns its string value.
func takeString(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	delete(fields, key)
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}
