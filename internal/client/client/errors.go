package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// StatusError is returned for any response with a status >= 400.
//
// It unwraps to ErrUnauthorized for 401 and to ErrUnavailable when the
// response was synthesized by the edge proxy (Offline).
type StatusError struct {
	Status  int
	Body    []byte
	Offline bool
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("http status %d", e.Status)
	}
	const max = 256
	body := e.Body
	if len(body) > max {
		body = body[:max]
	}
	return fmt.Sprintf("http status %d: %s", e.Status, body)
}

// StatusCode exposes the HTTP status to callers that must not import this package.
func (e *StatusError) StatusCode() int { return e.Status }

func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Offline:
		return ErrUnavailable
	}
	return nil
}
