package session

import (
	"unicode"
	"unicode/utf8"

	dcerrors "github.com/Aman-CERP/docchat/internal/errors"
)

// Event is an input to the reducer.
type Event interface{ isEvent() }

// KeyTyped is a printable key press.
type KeyTyped struct{ Rune rune }

// Backspace removes the last typed character.
type Backspace struct{}

// Submit is the Enter key.
type Submit struct{}

// SubmitLine types Text and presses Enter in one step. Line-oriented
// front ends use it instead of one KeyTyped per character.
type SubmitLine struct{ Text string }

// SearchSucceeded delivers the passages of request RequestID.
type SearchSucceeded struct {
	RequestID uint64
	Passages  []Passage
}

// SearchFailed delivers the failure of request RequestID.
type SearchFailed struct {
	RequestID uint64
	Err       error
}

func (KeyTyped) isEvent()        {}
func (Backspace) isEvent()       {}
func (Submit) isEvent()          {}
func (SubmitLine) isEvent()      {}
func (SearchSucceeded) isEvent() {}
func (SearchFailed) isEvent()    {}

// Effect is work the reducer asks the runtime to perform.
type Effect interface{ isEffect() }

// IssueSearch asks for Query to be sent to the backend as request RequestID.
type IssueSearch struct {
	RequestID uint64
	Query     string
}

// UpdateLocation asks the environment to publish Path as the current location.
type UpdateLocation struct{ Path string }

// ScrollToMain asks the environment to bring the transcript end into view.
type ScrollToMain struct{}

// ReportFailure asks for a failed request to be logged.
type ReportFailure struct {
	RequestID uint64
	Err       error
}

// ReportStale asks for a discarded response to be logged.
type ReportStale struct {
	RequestID uint64
	Latest    uint64
}

func (IssueSearch) isEffect()    {}
func (UpdateLocation) isEffect() {}
func (ScrollToMain) isEffect()   {}
func (ReportFailure) isEffect()  {}
func (ReportStale) isEffect()    {}

// StalePolicy decides how responses of superseded requests are handled.
type StalePolicy int

const (
	// DropStale ignores any response whose request is not the latest one.
	DropStale StalePolicy = iota
	// LastWins applies every response in arrival order.
	LastWins
)

// ParseStalePolicy maps the config values "drop" and "last_wins".
func ParseStalePolicy(s string) StalePolicy {
	if s == "last_wins" {
		return LastWins
	}
	return DropStale
}

// Reducer computes state transitions. It is a pure function of its inputs.
type Reducer struct {
	Policy StalePolicy
}

// Reduce returns the state following ev and the effects to perform.
// s is never modified. An event that changes nothing returns s unchanged
// and no effects.
func (r Reducer) Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case KeyTyped:
		if !unicode.IsPrint(ev.Rune) {
			return s, nil
		}
		s.Input = Input{Mode: InputComposing, Buffer: s.Input.Buffer + string(ev.Rune)}
		return s, nil

	case Backspace:
		if s.Input.Buffer == "" {
			return s, nil
		}
		_, size := utf8.DecodeLastRuneInString(s.Input.Buffer)
		s.Input = newInput(s.Input.Buffer[:len(s.Input.Buffer)-size])
		return s, nil

	case Submit:
		return submit(s, s.Input.Buffer)

	case SubmitLine:
		return submit(s, s.Input.Buffer+ev.Text)

	case SearchSucceeded:
		if r.stale(s, ev.RequestID) {
			return s, []Effect{ReportStale{RequestID: ev.RequestID, Latest: s.LastRequest}}
		}
		return succeed(s, ev.Passages), []Effect{ScrollToMain{}}

	case SearchFailed:
		if r.stale(s, ev.RequestID) {
			return s, []Effect{ReportStale{RequestID: ev.RequestID, Latest: s.LastRequest}}
		}
		return fail(s, ev.Err), []Effect{ReportFailure{RequestID: ev.RequestID, Err: ev.Err}}
	}

	return s, nil
}

func (r Reducer) stale(s State, id uint64) bool {
	return r.Policy == DropStale && id != s.LastRequest
}

func newInput(buf string) Input {
	if buf == "" {
		return Input{Mode: InputIdle}
	}
	return Input{Mode: InputComposing, Buffer: buf}
}

// submit appends the user message, clears the input and begins the search
// in a single transition.
func submit(s State, text string) (State, []Effect) {
	if text == "" {
		return s, nil
	}

	s.Messages = appendMessages(s.Messages, Message{Text: text, Origin: OriginUser})
	s.Input = Input{Mode: InputIdle}
	s.Loading = true
	s.Err = nil
	s.Query = text
	s.LastRequest++

	return s, []Effect{
		IssueSearch{RequestID: s.LastRequest, Query: text},
		UpdateLocation{Path: LocationPath(text)},
		ScrollToMain{},
	}
}

func succeed(s State, passages []Passage) State {
	added := make([]Message, len(passages))
	for i, p := range passages {
		added[i] = Message{Text: p.Text, Origin: OriginSystem}
	}

	s.Messages = appendMessages(s.Messages, added...)
	s.Results = append([]Passage{}, passages...)
	s.NumMatches = len(passages)
	s.Loading = false
	s.Err = nil
	s.Searched = true
	return s
}

func fail(s State, err error) State {
	info := ClassifyError(err)
	s.Results = []Passage{}
	s.Loading = false
	s.Err = &info
	s.Searched = true
	return s
}

// appendMessages returns a new slice holding msgs followed by added, with
// IDs assigned from their positions. msgs is left untouched.
func appendMessages(msgs []Message, added ...Message) []Message {
	out := make([]Message, len(msgs), len(msgs)+len(added))
	copy(out, msgs)
	for _, m := range added {
		m.ID = len(out)
		out = append(out, m)
	}
	return out
}

// ClassifyError maps a search failure to the error shown to the user.
func ClassifyError(err error) ErrorInfo {
	if dcerrors.IsRateLimited(err) {
		return ErrorInfo{Kind: ErrorRateLimited, Message: RateLimitedMessage}
	}
	return ErrorInfo{Kind: ErrorGeneric, Message: GenericMessage}
}
