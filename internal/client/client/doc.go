// Package client talks to a gophxfer relay over HTTP.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     Configuration, Upload, Download, Metadata and Delete.
//  2. A concrete HTTP implementation (see HTTPClient) that streams request and
//     response bodies without buffering them, retries idempotent metadata
//     calls with exponential backoff, and maps relay status codes to the
//     sentinel errors in internal/common.
//
// # Error Handling
//
// Callers match failures with errors.Is / errors.As:
//   - common.ErrNotFound: unknown, uncommitted or expired transfer.
//   - common.ErrConflict: the requested identifier is taken.
//   - *common.SizeLimitError: the relay limit, read from the 413 body.
//   - *common.RateLimitError: carries the Retry-After hint.
//   - ErrUnavailable: the relay could not be reached at all.
//   - *netx.StatusError: any other unexpected status.
//
// All operations accept context.Context and honor cancellation.
package client
