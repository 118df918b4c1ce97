package feed

import "fmt"

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindHTTPStatus ErrorKind = "http_status"
	KindParse      ErrorKind = "parse"
)

// FetchError is the only error an Adapter returns. The scheduler logs it and
// moves on to the next source.
type FetchError struct {
	Source     string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
