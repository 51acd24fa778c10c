// Package common defines shared constants and sentinel errors used across
// the relay and the client. Callers should use errors.Is / errors.As to match
// these values.
package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	// Secret/identifier generation failed (entropy source unavailable).
	ErrGeneration = errors.New("generation error")

	// Malformed or unsafe filesystem tree or archive stream.
	ErrArchive = errors.New("archive error")

	// Authentication failure while decrypting: wrong secret or tampering.
	ErrIntegrity = errors.New("integrity error")

	// Storage-level errors.
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("identifier already in use")
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// Admission errors.
	ErrRateLimited = errors.New("rate limited")
	ErrRejected    = errors.New("upload rejected")

	// Delete token errors.
	ErrInvalidToken = errors.New("invalid token")
)

// SizeLimitError reports that an upload crossed the configured maximum.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: maximum transfer size is %s", ErrSizeLimitExceeded, humanize.Bytes(uint64(e.Limit)))
}

func (e *SizeLimitError) Unwrap() error { return ErrSizeLimitExceeded }

// RateLimitError carries retry-after guidance for a rejected request.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
