package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveJob = errors.New("no active process")
	ErrNoResults   = errors.New("no results available for download")
	ErrClosed      = errors.New("session is closed")
)

// ErrJobFailed is a job the server reported in the error state.
type ErrJobFailed struct {
	error
	ProcessKey string
}

func NewErrJobFailed(processKey string) *ErrJobFailed {
	return &ErrJobFailed{error: fmt.Errorf("processing failed for process %s", processKey), ProcessKey: processKey}
}

// ErrStatusCheck is a status request that failed; polling stops on it.
type ErrStatusCheck struct {
	error
}

func NewErrStatusCheck(err error) *ErrStatusCheck {
	return &ErrStatusCheck{fmt.Errorf("status check failed: %w", err)}
}

func (e *ErrStatusCheck) Unwrap() error {
	return errors.Unwrap(e.error)
}

type ErrFetchResults struct {
	error
}

func NewErrFetchResults(err error) *ErrFetchResults {
	return &ErrFetchResults{fmt.Errorf("failed to fetch results: %w", err)}
}

func (e *ErrFetchResults) Unwrap() error {
	return errors.Unwrap(e.error)
}

type ErrDownload struct {
	error
}

func NewErrDownload(err error) *ErrDownload {
	return &ErrDownload{fmt.Errorf("download failed: %w", err)}
}

func (e *ErrDownload) Unwrap() error {
	return errors.Unwrap(e.error)
}
