package service

import (
	"errors"
	"fmt"
	"net/http"
)

// EncodingError reports an inbound body that could not be re-encoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return "Failed to process form data: " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error { return e.Err }

// TransportError reports a backend exchange that did not complete:
// DNS or connection failure, timeout, cancellation, breaker rejection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BodyReadError reports an inbound body whose read failed, for example on a
// size limit or a client that went away mid-upload. Nothing is dispatched.
type BodyReadError struct {
	Err error
}

func (e *BodyReadError) Error() string {
	if e.TooLarge() {
		return http.StatusText(http.StatusRequestEntityTooLarge)
	}
	return "Failed to read request body: " + e.Err.Error()
}

func (e *BodyReadError) Unwrap() error { return e.Err }

// TooLarge reports whether the read stopped at the body size limit.
func (e *BodyReadError) TooLarge() bool {
	var mbe *http.MaxBytesError
	return errors.As(e.Err, &mbe)
}
