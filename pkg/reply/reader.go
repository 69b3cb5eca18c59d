package reply

import (
	"errors"
	"io"
)

const defaultReadSize = 32 * 1024

// Reader drives a Decoder from an io.Reader, typically an HTTP response body.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │ chunk
// ▼
// ┌──────────────────┐
// │  Decoder.Feed()  │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Result      │
// └──────────────────┘
//
// Each call to Next performs one read, so the caller can re-render the body
// at the pace the network delivers it.
type Reader struct {
	src  io.Reader
	dec  *Decoder
	buf  []byte
	err  error
	done bool
}

// NewReader returns a Reader that decodes src with a Decoder built from opts.
func NewReader(src io.Reader, opts ...Option) *Reader {
	return &Reader{
		src: src,
		dec: NewDecoder(opts...),
		buf: make([]byte, defaultReadSize),
	}
}

// Next reads the next chunk from the source and returns the updated Result.
// It blocks until the source yields data.
//
// When the source is exhausted, Next finishes the decoder and returns the
// final Result with Done set; after that it returns nil, nil. A read error
// other than io.EOF is returned as is and the decoder is left unfinished.
func (r *Reader) Next() (*Result, error) {
	if r.done {
		return nil, nil
	}

	for {
		if r.err != nil {
			return r.finish()
		}

		n, err := r.src.Read(r.buf)
		if err != nil {
			r.err = err
		}

		if n > 0 {
			res := r.dec.Feed(r.buf[:n])
			return &res, nil
		}
	}
}

// Decoder returns the underlying Decoder.
func (r *Reader) Decoder() *Decoder {
	return r.dec
}

func (r *Reader) finish() (*Result, error) {
	if !errors.Is(r.err, io.EOF) {
		return nil, r.err
	}

	r.done = true
	res := r.dec.Finish()
	return &res, nil
}
