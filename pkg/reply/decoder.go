package reply

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	// DefaultMaxHeaderBytes bounds how much text is buffered while the
	// header decision is pending.
	DefaultMaxHeaderBytes = 64 * 1024

	// DefaultMaxHeaderAttempts bounds how many Feed calls may defer the
	// header decision.
	DefaultMaxHeaderAttempts = 64
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithFraming sets the header framing strategy. Defaults to FramingAuto.
func WithFraming(f Framing) Option {
	return func(d *Decoder) {
		d.framing = f
	}
}

// WithMaxHeaderBytes overrides DefaultMaxHeaderBytes. Non-positive values
// are ignored.
func WithMaxHeaderBytes(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxHeaderBytes = n
		}
	}
}

// WithMaxHeaderAttempts overrides DefaultMaxHeaderAttempts. Non-positive
// values are ignored.
func WithMaxHeaderAttempts(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxHeaderAttempts = n
		}
	}
}

// Decoder splits a streamed reply into its optional Header and its Body.
//
// Feed is called once per chunk as it arrives and Finish once the stream
// ends. The header is extracted at most once: while the decision is pending
// no text is exposed as Body, and once it is made every later chunk is
// appended to Body verbatim.
//
// A Decoder never fails. Malformed or truncated headers degrade to "no
// header", with the buffered text kept as body.
//
// A Decoder is not safe for concurrent use; use one per reply.
type Decoder struct {
	framing           Framing
	maxHeaderBytes    int
	maxHeaderAttempts int

	text     *textDecoder
	state    State
	header   *Header
	pending  strings.Builder
	body     strings.Builder
	attempts int
	final    *Result
}

// NewDecoder returns a Decoder in StateAwaitingHeader.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		framing:           FramingAuto,
		maxHeaderBytes:    DefaultMaxHeaderBytes,
		maxHeaderAttempts: DefaultMaxHeaderAttempts,
		text:              newTextDecoder(),
		state:             StateAwaitingHeader,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Feed appends the next chunk of the stream and returns the current decode
// state. Feed after Finish is a no-op that returns the final Result.
func (d *Decoder) Feed(chunk []byte) Result {
	if d.final != nil {
		return *d.final
	}

	text := d.text.decode(chunk, false)

	if d.state != StateAwaitingHeader {
		d.body.WriteString(text)
		return d.result()
	}

	d.pending.WriteString(text)
	d.attempts++
	d.resolve(false)

	// Fail open: decide with what has been buffered, as if the stream ended.
	if d.state == StateAwaitingHeader &&
		(d.attempts >= d.maxHeaderAttempts || d.pending.Len() > d.maxHeaderBytes) {
		d.resolve(true)
	}

	return d.result()
}

// Finish flushes any buffered bytes, resolves a still-pending header
// decision, and returns the final Result. Repeated calls return the same
// Result.
func (d *Decoder) Finish() Result {
	if d.final != nil {
		return *d.final
	}

	tail := d.text.decode(nil, true)
	if d.state == StateAwaitingHeader {
		d.pending.WriteString(tail)
		d.resolve(true)
	} else {
		d.body.WriteString(tail)
	}

	res := d.result()
	res.Done = true

	d.state = StateFinished
	d.final = &res

	return res
}

// State returns the current header resolution state.
func (d *Decoder) State() State {
	return d.state
}

// Header returns the extracted header, or nil.
func (d *Decoder) Header() *Header {
	return d.header
}

func (d *Decoder) result() Result {
	return Result{
		HeaderExtracted: d.header != nil,
		Header:          d.header,
		Body:            d.body.String(),
	}
}

// resolve attempts the header decision on the buffered text. With atEOF
// set, no more text will arrive and the decision is always made.
func (d *Decoder) resolve(atEOF bool) {
	buf := d.pending.String()
	if buf == "" {
		if atEOF {
			d.commitAbsent("")
		}
		return
	}

	if buf[0] != '{' {
		d.commitAbsent(buf)
		return
	}

	if d.framing == FramingLine {
		d.resolveLine(buf, atEOF)
		return
	}

	d.resolveObject(buf, atEOF)
}

// resolveLine implements FramingLine: the first line, and only the first
// line, is the header candidate.
func (d *Decoder) resolveLine(buf string, atEOF bool) {
	line, rest, found := strings.Cut(buf, "\n")
	if !found {
		if !atEOF {
			// A syntax error before the newline cannot be repaired by more input.
			if _, _, err := scanObject(buf); err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			d.commitAbsent(buf)
			return
		}
		line, rest = buf, ""
	}

	h, ok := parseHeader([]byte(strings.TrimSuffix(line, "\r")))
	if !ok {
		d.commitAbsent(buf)
		return
	}

	d.commitHeader(h, rest)
}

// resolveObject implements FramingEmbedded and FramingAuto.
func (d *Decoder) resolveObject(buf string, atEOF bool) {
	raw, n, err := scanObject(buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF) && !atEOF:
		return
	default:
		d.commitAbsent(buf)
		return
	}

	h, ok := parseHeader(raw)
	if !ok {
		d.commitAbsent(buf)
		return
	}

	rest := buf[n:]
	if d.framing == FramingAuto {
		switch {
		case !atEOF && (rest == "" || rest == "\r"):
			// The line delimiter may be in the next chunk.
			return
		case strings.HasPrefix(rest, "\r\n"):
			rest = rest[2:]
		case strings.HasPrefix(rest, "\n"):
			rest = rest[1:]
		}
	}

	d.commitHeader(h, rest)
}

func (d *Decoder) commitHeader(h *Header, rest string) {
	d.state = StateHeaderFound
	d.header = h
	d.pending.Reset()
	d.body.WriteString(rest)
}

func (d *Decoder) commitAbsent(buf string) {
	d.state = StateHeaderAbsent
	d.pending.Reset()
	d.body.WriteString(buf)
}

// scanObject decodes the JSON value at the start of s and returns it with
// the number of bytes consumed. Truncated input yields io.ErrUnexpectedEOF.
func scanObject(s string) (json.RawMessage, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, err
	}

	return raw, int(dec.InputOffset()), nil
}
