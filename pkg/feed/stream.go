package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StreamReader reads steps from a JSON-lines stream, one Step object per
// line. Blank lines and lines starting with '#' are skipped. DPIDs are
// strings: "00-00-00-00-00-01", "0x1" or "1".
type StreamReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewStreamReader reads steps from r.
func NewStreamReader(r io.Reader) *StreamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamReader{scanner: sc}
}

// Next returns the next valid step, or io.EOF at the end of the stream.
func (s *StreamReader) Next() (*Step, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var step Step
		if err := json.Unmarshal([]byte(text), &step); err != nil {
			return nil, &LineError{Line: s.line, Err: err}
		}
		if err := step.Validate(); err != nil {
			return nil, &LineError{Line: s.line, Step: step.String(), Err: err}
		}
		return &step, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// LineError is a malformed or invalid line. The stream can be read on
// past it.
type LineError struct {
	Line int
	Step string
	Err  error
}

func (e *LineError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.Step, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Line returns the number of the line last read.
func (s *StreamReader) Line() int {
	return s.line
}
