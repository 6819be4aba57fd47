package ingest

import (
	"fmt"
	"strings"
)

// TransportError reports a failed request: the connection, the body read, or
// a non-200 status. It aborts the whole fetch.
type TransportError struct {
	Indicator  string
	StatusCode int
	// Snippet is the start of the response body for non-200 responses.
	Snippet string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport error for indicator %s", e.Indicator)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, ": %s", e.Snippet)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError reports a response whose JSON does not have the expected shape.
type FormatError struct {
	Indicator string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected response format for indicator %s: %v", e.Indicator, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func snippet(body []byte) string {
	const max = 256
	s := string(body)
	truncated := len(s) > max
	if truncated {
		s = s[:max]
	}
	s = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(s))
	if truncated {
		s += "..."
	}
	return s
}
