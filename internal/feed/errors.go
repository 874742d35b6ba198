package feed

import "fmt"

// ParseError reports a response body that does not hold a usable feed
// envelope.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed: parse: %s: %v", e.Reason, e.Err)
	}
	return "feed: parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// NetworkError reports a failed request or a non-2xx response.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MissingColumnError reports that an expected column is absent from a table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}
