package chatcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/render"
	"github.com/papercomputeco/dechat/pkg/reply"
)

// streamDisplay prints one assistant reply as it streams in.
//
// Raw text is written as it arrives. On a terminal with the terminal
// renderer, the raw text is erased once the reply is complete and replaced
// by the styled rendering. HTML output is only printed at the end.
type streamDisplay struct {
	out      io.Writer
	renderer render.Renderer
	width    int

	live     bool
	rerender bool

	started bool
	printed string
}

func newStreamDisplay(out io.Writer, r render.Renderer, tty bool, width int) *streamDisplay {
	_, isHTML := r.(*render.HTML)
	_, isTerminal := r.(*render.Terminal)

	return &streamDisplay{
		out:      out,
		renderer: r,
		width:    width,
		live:     !isHTML,
		rerender: tty && isTerminal,
	}
}

// update receives the decoder state after every network read.
func (d *streamDisplay) update(res reply.Result) {
	if !d.started && (res.HeaderExtracted || res.Body != "") {
		d.start(res.Header)
	}

	if !d.live || !strings.HasPrefix(res.Body, d.printed) {
		return
	}

	delta := res.Body[len(d.printed):]
	if delta == "" {
		return
	}
	fmt.Fprint(d.out, delta)
	d.printed = res.Body
}

func (d *streamDisplay) start(h *reply.Header) {
	d.started = true
	if h != nil {
		fmt.Fprint(d.out, cliui.ScopeBadge(h.Scope))
	}
	fmt.Fprintln(d.out)
}

// finish prints the final form of a streamed reply.
func (d *streamDisplay) finish(body string) {
	if !d.started {
		d.start(nil)
	}

	switch {
	case d.rerender:
		d.erase()
		d.printRendered(body)
	case d.live:
		if !strings.HasSuffix(d.printed, "\n") {
			fmt.Fprintln(d.out)
		}
		fmt.Fprintln(d.out)
	default:
		d.printRendered(body)
	}
}

// whole prints a reply that arrived in one piece.
func (d *streamDisplay) whole(scope, body string) {
	fmt.Fprintln(d.out, cliui.ScopeBadge(scope))
	d.started = true
	d.printRendered(body)
}

// abort ends a reply that failed mid-stream.
func (d *streamDisplay) abort() {
	if d.started {
		fmt.Fprintln(d.out)
	}
}

func (d *streamDisplay) printRendered(body string) {
	out, err := d.renderer.Render(body)
	if err != nil {
		out = body
	}
	out = strings.TrimRight(out, "\n")
	fmt.Fprintf(d.out, "%s\n\n", out)
}

// erase moves the cursor back to the first line of the raw text and clears
// everything below it.
func (d *streamDisplay) erase() {
	rows := d.rows()
	if rows > 1 {
		fmt.Fprintf(d.out, "\r\x1b[%dA\x1b[J", rows-1)
		return
	}
	fmt.Fprint(d.out, "\r\x1b[J")
}

// rows counts the terminal rows the raw text occupies, including soft wraps.
func (d *streamDisplay) rows() int {
	if d.printed == "" {
		return 1
	}

	total := 0
	for _, line := range strings.Split(d.printed, "\n") {
		w := lipgloss.Width(line)
		if d.width <= 0 || w <= d.width {
			total++
			continue
		}
		total += (w + d.width - 1) / d.width
	}
	return total
}
