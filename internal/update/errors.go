package update

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adamancini/hoist/internal/types"
)

// ErrPermissionDenied is matched by errors.Is for every permission failure.
var ErrPermissionDenied = errors.New("permission denied")

// ErrNothingToRetry is returned by Retry outside the failed/cancelled states.
var ErrNothingToRetry = errors.New("no failed attempt to retry")

// NetworkError is a transport failure during fetch.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-success response status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download of %s returned status %d", e.URL, e.StatusCode)
}

// CancelledError reports that the download was cancelled.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return "download cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Err }

// ChecksumError reports an archive whose digest does not match the release.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// UnpackError reports an extraction failure.
type UnpackError struct {
	Archive string
	Err     error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("failed to unpack %s: %v", getFilename(e.Archive), e.Err)
}

func (e *UnpackError) Unwrap() error { return e.Err }

// AmbiguousBundleError reports zero or several bundle candidates after unpack.
type AmbiguousBundleError struct {
	Suffix     string
	Candidates []string
}

func (e *AmbiguousBundleError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no %s bundle found in update", e.Suffix)
	}
	return fmt.Sprintf("expected one %s bundle in update, found %d: %s",
		e.Suffix, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// PermissionDeniedError reports that a strategy may not write its target.
type PermissionDeniedError struct {
	Strategy types.StrategyKind
	Path     string
	Err      error
}

func (e *PermissionDeniedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s install: permission denied for %s: %v", e.Strategy, e.Path, e.Err)
	}
	return fmt.Sprintf("%s install: permission denied for %s", e.Strategy, e.Path)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPermissionDenied) true.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// DestinationBusyError reports an existing destination that could not be removed.
type DestinationBusyError struct {
	Path string
	Err  error
}

func (e *DestinationBusyError) Error() string {
	return fmt.Sprintf("destination %s is busy and could not be replaced: %v", e.Path, e.Err)
}

func (e *DestinationBusyError) Unwrap() error { return e.Err }

// ElevationDeniedError reports that administrator rights were not granted.
type ElevationDeniedError struct {
	Reason string
	Err    error
}

func (e *ElevationDeniedError) Error() string {
	msg := "administrator privileges were not granted"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *ElevationDeniedError) Unwrap() error { return e.Err }

// AlreadyInProgressError is returned by Start while another attempt is active.
type AlreadyInProgressError struct {
	AttemptID string
	State     types.AttemptState
}

func (e *AlreadyInProgressError) Error() string {
	return fmt.Sprintf("update %s already in progress (%s)", e.AttemptID, e.State)
}
