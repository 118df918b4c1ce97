package notify

import "fmt"

// ErrorKind classifies a delivery failure.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindHTTPStatus   ErrorKind = "http_status"
	KindUnauthorized ErrorKind = "unauthorized"
)

// NotifyError reports a failed delivery. The caller logs it; there is no
// retry.
type NotifyError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *NotifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("notify: %s: status %d", e.Kind, e.StatusCode)
}

func (e *NotifyError) Unwrap() error { return e.Err }
