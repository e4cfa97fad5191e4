// Package session holds the chat search session: its state, the pure
// reducer that drives every transition, and the controller that runs the
// reducer on a single event loop and performs the resulting effects.
package session

import (
	"fmt"
	"slices"
	"strings"
)

// User-facing error texts.
const (
	RateLimitedMessage = "Number of free queries per month exceeded"
	GenericMessage     = "Error fetching results"
)

// EmptyResultsMessage is shown once a query finished without passages.
const EmptyResultsMessage = "No results found. Please enter new search query."

// Origin tells who authored a message.
type Origin int

const (
	// OriginUser marks a submitted query.
	OriginUser Origin = iota
	// OriginSystem marks a passage returned by the backend.
	OriginSystem
)

// String returns "user" or "system".
func (o Origin) String() string {
	if o == OriginSystem {
		return "system"
	}
	return "user"
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOrigin parses "user" or "system" (case-insensitive).
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(s) {
	case "user":
		return OriginUser, nil
	case "system":
		return OriginSystem, nil
	default:
		return OriginUser, fmt.Errorf("unknown message origin %q", s)
	}
}

// Message is one entry of the append-only transcript.
// ID equals the message's position in the transcript.
type Message struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Origin Origin `json:"origin"`
}

// Passage is a unit of returned search content.
// Metadata carries backend fields through untouched.
type Passage struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorKind classifies a failed request for display.
type ErrorKind int

const (
	// ErrorGeneric covers transport errors, bad statuses and malformed bodies.
	ErrorGeneric ErrorKind = iota
	// ErrorRateLimited is quota exhaustion (HTTP 429).
	ErrorRateLimited
)

// String returns "generic" or "rate_limited".
func (k ErrorKind) String() string {
	if k == ErrorRateLimited {
		return "rate_limited"
	}
	return "generic"
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrorInfo is the error shown next to the transcript.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// InputMode is the state of the input line.
type InputMode int

const (
	// InputIdle means nothing has been typed since the last submit.
	InputIdle InputMode = iota
	// InputComposing means the buffer holds at least one character.
	InputComposing
)

// String returns "idle" or "composing".
func (m InputMode) String() string {
	if m == InputComposing {
		return "composing"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (m InputMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Input is the tagged input-line state. Buffer is empty iff Mode is InputIdle.
type Input struct {
	Mode   InputMode `json:"mode"`
	Buffer string    `json:"buffer"`
}

// State is one immutable snapshot of the session.
//
// Transitions never modify a State or the slices it references; they build
// a new value. Snapshots handed to renderers can therefore be shared freely.
type State struct {
	Query    string     `json:"query"`
	Loading  bool       `json:"loading"`
	Err      *ErrorInfo `json:"error,omitempty"`
	Results  []Passage  `json:"results"`
	Messages []Message  `json:"messages"`
	Input    Input      `json:"input"`

	// NumMatches is the size of the last successful result set.
	NumMatches int `json:"num_matches"`
	// Searched is set once any response or failure has been processed.
	Searched bool `json:"searched"`
	// LastRequest is the id of the most recently issued request.
	LastRequest uint64 `json:"last_request"`
}

// NewState returns the initial state with the given seeded transcript.
// Seed IDs are reassigned to their positions.
func NewState(seed []Message) State {
	msgs := make([]Message, len(seed))
	for i, m := range seed {
		msgs[i] = Message{ID: i, Text: m.Text, Origin: m.Origin}
	}
	return State{Messages: msgs}
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := s
	c.Messages = slices.Clone(s.Messages)
	c.Results = slices.Clone(s.Results)
	if s.Err != nil {
		e := *s.Err
		c.Err = &e
	}
	return c
}

// ShowEmptyResults reports whether the empty-results notice applies.
func (s State) ShowEmptyResults() bool {
	return s.Searched && !s.Loading && len(s.Results) == 0
}

// LocationPath is the location a submitted query is published under:
// "/" followed by the query with spaces replaced by "+".
func LocationPath(query string) string {
	return "/" + strings.ReplaceAll(query, " ", "+")
}
