package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const (
	// doneSentinel terminates both upstream surfaces' event streams.
	doneSentinel = "[DONE]"

	// maxEventSize bounds a single event payload. Conversation
	// snapshots grow with the message but stay well under this.
	maxEventSize = 10 << 20
)

// Reader yields the data payloads of a Server-Sent Events stream, one
// event at a time. Event names, ids, retry hints, and comments are
// skipped; multi-line data fields are joined with newlines per the SSE
// framing rules. The stream ends at EOF or at the "[DONE]" sentinel,
// both reported as io.EOF.
type Reader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewReader wraps an upstream event-stream body.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event payload. It returns io.EOF when the
// stream is exhausted and a wrapped read error when the upstream
// connection breaks mid-stream.
func (r *Reader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	var data [][]byte
	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		// Blank line ends the current event.
		if len(bytes.TrimSpace(line)) == 0 {
			if len(data) == 0 {
				continue
			}
			payload := bytes.Join(data, []byte("\n"))
			if string(payload) == doneSentinel {
				r.done = true
				return nil, io.EOF
			}
			return payload, nil
		}

		value, ok := dataField(line)
		if !ok {
			// event:, id:, retry:, or a comment; not payload.
			continue
		}
		data = append(data, value)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("event stream read failed: %w", err)
	}

	r.done = true
	if len(data) > 0 {
		payload := bytes.Join(data, []byte("\n"))
		if string(payload) != doneSentinel {
			return payload, nil
		}
	}
	return nil, io.EOF
}

// dataField extracts the value of a "data:" line. A single leading
// space after the colon is framing, not payload.
func dataField(line []byte) ([]byte, bool) {
	value, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil, false
	}
	value = bytes.TrimPrefix(value, []byte(" "))
	// Copy: the scanner reuses its buffer on the next Scan.
	return bytes.Clone(value), true
}
