package client

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse = errors.New("empty response")
)

// ErrServer is a non-2xx answer from the annotation server.
type ErrServer struct {
	error
	StatusCode int
	// Message is the server's error string, if it sent one.
	Message string
}

func NewErrServer(statusCode int, message, fallback string) *ErrServer {
	text := message
	if text == "" {
		text = fallback
	}
	return &ErrServer{
		error:      fmt.Errorf("%s", text),
		StatusCode: statusCode,
		Message:    message,
	}
}
