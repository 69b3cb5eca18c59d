// Package reply decodes streamed assistant replies from the dechat backend.
//
// A reply is a plain text body, rendered as Markdown by the client, that may
// be preceded by a JSON metadata header carrying the conversation id and the
// routing scope:
//
//	{"chat_id":"4b1f...","scope":"sql"}\n
//	## Result
//	...
//
// Chunk boundaries are arbitrary: the header, a Markdown token, or a UTF-8
// code point may all be split across network reads. The Decoder buffers
// until the header decision can be made, then passes everything else
// through verbatim.
package reply

import "encoding/json"

// Header is the optional metadata object at the start of a reply.
type Header struct {
	// ChatID is the conversation identifier assigned by the backend.
	ChatID string `json:"chat_id,omitempty"`

	// Scope is the routing label chosen for the question (e.g. "sql", "dbt").
	Scope string `json:"scope,omitempty"`

	// Fields holds every key of the decoded object, including ChatID and Scope.
	Fields map[string]any `json:"-"`
}

// parseHeader decodes raw as a JSON object. ok is false when raw is valid
// JSON but not an object.
func parseHeader(raw []byte) (*Header, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}

	h := &Header{Fields: fields}
	if v, ok := fields["chat_id"].(string); ok {
		h.ChatID = v
	}
	if v, ok := fields["scope"].(string); ok {
		h.Scope = v
	}
	return h, true
}

// Framing selects how the header is delimited from the body.
type Framing int

const (
	// FramingAuto accepts both line-framed and embedded headers: a JSON
	// object at offset 0, optionally followed by a single line break that is
	// not part of the body.
	FramingAuto Framing = iota

	// FramingLine treats the first line as the header candidate.
	FramingLine

	// FramingEmbedded treats the first JSON object as the header; the body
	// starts immediately after its closing brace.
	FramingEmbedded
)

var framingNames = map[Framing]string{
	FramingAuto:     "auto",
	FramingLine:     "line",
	FramingEmbedded: "embedded",
}

func (f Framing) String() string {
	if name, ok := framingNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFraming maps a config value to a Framing. The empty string is auto.
func ParseFraming(s string) (Framing, bool) {
	if s == "" {
		return FramingAuto, true
	}
	for f, name := range framingNames {
		if name == s {
			return f, true
		}
	}
	return FramingAuto, false
}

// State is the header resolution state of a Decoder.
type State int

const (
	// StateAwaitingHeader is the initial state: not enough text has arrived
	// to decide whether a header is present.
	StateAwaitingHeader State = iota

	// StateHeaderFound means a header was extracted; all further text is body.
	StateHeaderFound

	// StateHeaderAbsent means no header is present (or the decoder gave up
	// waiting for one); all text is body.
	StateHeaderAbsent

	// StateFinished is terminal and reached once Finish is called.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeader:
		return "awaiting_header"
	case StateHeaderFound:
		return "header_found"
	case StateHeaderAbsent:
		return "header_absent"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Result is the best-effort decode state after a Feed or Finish.
type Result struct {
	// HeaderExtracted reports whether a header was found. It is false both
	// while the decision is pending and when no header exists.
	HeaderExtracted bool

	// Header is the decoded header, or nil.
	Header *Header

	// Body is all renderable text accumulated so far.
	Body string

	// Done is set on the Result returned by Finish.
	Done bool
}
