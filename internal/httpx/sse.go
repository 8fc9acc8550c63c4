package httpx

import (
	"bufio"
	"io"
	"strings"
)

// SSEScanner walks the data lines of a server-sent-event response body.
// `event:` lines, comments, and blank frame separators are skipped; only
// the payload after each `data:` prefix is surfaced.
type SSEScanner struct {
	scanner *bufio.Scanner
}

func NewSSEScanner(r io.Reader) *SSEScanner {
	s := bufio.NewScanner(r)
	// Provider deltas are small, but a retrieved-context echo or an error
	// body can exceed the default 64K token limit.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: s}
}

// Next returns the next data payload. ok is false at end of stream or on a
// read error; Err distinguishes the two.
func (s *SSEScanner) Next() (data string, ok bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		return strings.TrimSpace(line[len("data:"):]), true
	}
	return "", false
}

func (s *SSEScanner) Err() error {
	return s.scanner.Err()
}
