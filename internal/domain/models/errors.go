package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired indicates the upstream rejected the caller's session
	// (401). It must prompt re-authentication and is never retried against
	// fallback endpoints.
	ErrSessionExpired = errors.New("session expired")

	// ErrPermissionDenied indicates a single endpoint denied access (403).
	// The fallback client treats it as "try the next endpoint".
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates a tracking lookup or title search yielded
	// nothing. User-visible, not an application error.
	ErrNotFound = errors.New("report not found")

	// ErrChallengeFailed indicates the verification input did not match.
	// The challenge is silently regenerated and submission stays blocked.
	ErrChallengeFailed = errors.New("challenge verification failed")

	// ErrChallengeExpired indicates the challenge no longer exists in the
	// store, either by TTL or because it was already consumed.
	ErrChallengeExpired = errors.New("challenge expired")
)

// ValidationError carries field-level validation messages. It is raised
// locally, before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// EndpointsExhaustedError indicates every candidate read endpoint denied
// access. It carries the last error for diagnostics.
type EndpointsExhaustedError struct {
	Attempted int
	LastErr   error
}

func (e *EndpointsExhaustedError) Error() string {
	return fmt.Sprintf("all %d read endpoints denied access: %v", e.Attempted, e.LastErr)
}

func (e *EndpointsExhaustedError) Unwrap() error {
	return e.LastErr
}

// UploadFailedError indicates a media upload failed. It aborts the entire
// submission; no partial report is created.
type UploadFailedError struct {
	LogicalID string
	Message   string
}

func (e *UploadFailedError) Error() string {
	if e.Message == "" {
		return "upload failed"
	}
	return "upload failed: " + e.Message
}

// SubmissionRejectedError indicates a server-side business-rule rejection.
// The server message is surfaced verbatim when structured, a generic
// message otherwise.
type SubmissionRejectedError struct {
	Message string
}

func (e *SubmissionRejectedError) Error() string {
	if e.Message == "" {
		return "submission rejected"
	}
	return "submission rejected: " + e.Message
}
