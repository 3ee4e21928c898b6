package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrDurationExceeded     = errors.New("duration exceeded")
	ErrEmptyTranscript      = errors.New("empty transcript")
	ErrVideoAltered         = errors.New("video stream altered by remux")
)

// IsGate reports whether err is an expected skip rather than a failure.
func IsGate(err error) bool {
	return errors.Is(err, ErrDurationExceeded) || errors.Is(err, ErrEmptyTranscript)
}

// ServiceError is a failed call to a remote speech service.
// Status is 0 when no HTTP response was received.
type ServiceError struct {
	Service string
	Status  int
	Body    string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s status %d: %v", e.Service, e.Status, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s status %d: %s", e.Service, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s status %d", e.Service, e.Status)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
// Malformed bodies on a 2xx are terminal.
func (e *ServiceError) Transient() bool {
	if e.Status == 0 {
		return e.Err != nil && !errors.Is(e.Err, errMalformed)
	}
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

var errMalformed = errors.New("malformed response")

// Malformed builds a terminal ServiceError for an undecodable 2xx body.
func Malformed(service string, status int, body string, detail string) *ServiceError {
	return &ServiceError{
		Service: service,
		Status:  status,
		Body:    body,
		Err:     fmt.Errorf("%w: %s", errMalformed, detail),
	}
}

// IsTransient is the retry classifier shared by adapters.
func IsTransient(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// ToolError is a non-zero exit of an external media tool.
type ToolError struct {
	Tool     string
	Op       string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s %s: %v", e.Tool, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v\n%s", e.Tool, e.Op, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }
