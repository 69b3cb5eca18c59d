package reply

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textDecoder incrementally converts bytes to UTF-8 text. A multi-byte
// sequence split across chunks is held back until its remaining bytes arrive;
// invalid sequences are replaced with U+FFFD.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     [4096]byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{
		t: unicode.UTF8.NewDecoder(),
	}
}

// decode returns the text decodable from the pending bytes plus p. When atEOF
// is set, any incomplete trailing sequence is flushed as U+FFFD.
func (d *textDecoder) decode(p []byte, atEOF bool) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst[:], src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		if errors.Is(err, transform.ErrShortSrc) {
			d.pending = append([]byte(nil), src...)
		}
		break
	}

	if atEOF {
		d.t.Reset()
	}

	return out.String()
}
