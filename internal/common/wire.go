package common

import "time"

// TransferConfiguration announces the relay limits.
type TransferConfiguration struct {
	ExpireAfterMs int64 `json:"expire_after_ms"`
	MaxSizeBytes  int64 `json:"max_size_bytes"`
}

// ServerConfiguration is the body of GET /configuration.
type ServerConfiguration struct {
	Transfer TransferConfiguration `json:"transfer"`
}

// ExpireAfter returns the announced lifetime as a duration.
func (c ServerConfiguration) ExpireAfter() time.Duration {
	return time.Duration(c.Transfer.ExpireAfterMs) * time.Millisecond
}

// CreateTransferResponse is returned with 201 by the upload routes.
type CreateTransferResponse struct {
	ID          string    `json:"id"`
	ExpiresAt   time.Time `json:"expires_at"`
	DeleteToken string    `json:"delete_token,omitempty"`
}

// ErrorResponse is the JSON body of relay error responses. MaxSizeBytes is
// set on 413.
type ErrorResponse struct {
	Error        string `json:"error"`
	MaxSizeBytes int64  `json:"max_size_bytes,omitempty"`
}
