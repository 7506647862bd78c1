// Package sse decodes a raw byte stream into discrete server-sent events.
//
// The reader keeps a rolling buffer so an event whose bytes are split across
// any number of physical reads is reassembled intact. Events are emitted per
// blank-line-terminated block; providers that omit blank-line framing and
// send one JSON document per "data:" line are tolerated as well. A literal
// [DONE] payload terminates the stream without being surfaced as an event.
package sse

import (
	"bytes"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// Event is one decoded server-sent event. Name holds the optional "event:"
// field, Data the joined payload of the event's "data:" lines.
type Event struct {
	Name string
	Data string
}

// Reader incrementally decodes events from an underlying byte stream.
// It is not safe for concurrent use.
type Reader struct {
	r    io.Reader
	buf  []byte // unconsumed bytes, including any trailing partial line
	read []byte

	name      string
	dataLines []string

	ready []Event
	done  bool
	err   error
}

// NewReader returns a Reader decoding events from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, read: make([]byte, 4096)}
}

// Next returns the next event. It returns io.EOF when the stream ends or the
// [DONE] sentinel is seen; the sentinel itself is never emitted.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.ready) > 0 {
			ev := r.ready[0]
			r.ready = r.ready[1:]
			return ev, nil
		}
		if r.done {
			return Event{}, io.EOF
		}
		if r.err != nil {
			err := r.err
			r.err = nil
			return Event{}, err
		}

		n, err := r.r.Read(r.read)
		if n > 0 {
			r.buf = append(r.buf, r.read[:n]...)
			r.drainLines()
		}
		if err != nil {
			if err == io.EOF {
				// A trailing block without a final blank line still counts.
				r.flush()
				r.done = true
			} else {
				r.flush()
				r.err = err
			}
		}
	}
}

// drainLines consumes every complete line in the buffer, retaining the
// trailing partial line for the next read.
func (r *Reader) drainLines() {
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimSuffix(string(r.buf[:idx]), "\r")
		r.buf = r.buf[idx+1:]
		r.handleLine(line)
		if r.done {
			return
		}
	}
}

func (r *Reader) handleLine(line string) {
	switch {
	case line == "":
		r.flush()
	case strings.HasPrefix(line, ":"):
		// comment, ignored
	case strings.HasPrefix(line, "event:"):
		r.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if data == "[DONE]" {
			r.flush()
			r.done = true
			return
		}
		// Providers that never send blank lines deliver one complete JSON
		// document per data line; flush the previous one before buffering.
		if len(r.dataLines) > 0 && gjson.Valid(strings.Join(r.dataLines, "\n")) {
			r.flush()
		}
		r.dataLines = append(r.dataLines, data)
	default:
		// Non-parseable lines are ignored, not fatal.
	}
}

// flush emits the buffered block, if any, and resets the per-event state.
func (r *Reader) flush() {
	if len(r.dataLines) == 0 {
		r.name = ""
		return
	}
	r.ready = append(r.ready, Event{Name: r.name, Data: strings.Join(r.dataLines, "\n")})
	r.name = ""
	r.dataLines = nil
}
