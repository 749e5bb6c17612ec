package virtus

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by Recv on a stream that was already closed.
var ErrStreamClosed = errors.New("virtus: stream closed")

// APIError is a non-2xx response from the platform. Detail carries the
// backend's message when the error body had one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

// StreamError is a failure the server reported mid-stream as an error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}
