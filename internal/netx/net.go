// Package netx holds HTTP helpers shared by the relay and its client.
package netx

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address a request originates from. With trustProxy
// the left-most X-Forwarded-For entry (or X-Real-IP) is used; this is only
// safe behind a proxy that overwrites those headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// maxErrorBody caps how much of an unexpected response is kept for errors.
const maxErrorBody = 512

// StatusError describes an HTTP response with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d %s; body: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// NewStatusError reads a bounded part of resp.Body into a StatusError.
func NewStatusError(resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
