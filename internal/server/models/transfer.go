// Package models defines server-side data models shared by the storage
// engine and its record index backends.
package models

import "time"

// Transfer is the persisted metadata of a committed transfer. The encrypted
// content itself lives in the blob backend under the same ID.
type Transfer struct {
	// ID is the word identifier the transfer is addressed by.
	ID string
	// Size is the ciphertext length in bytes.
	Size int64
	// CreatedAt is when the upload began.
	CreatedAt time.Time
	// ExpiresAt is the commit time plus the relay TTL. The transfer is not
	// served at or after this instant.
	ExpiresAt time.Time
}

// Remaining returns the time left before expiry, never negative.
func (t *Transfer) Remaining(now time.Time) time.Duration {
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the transfer is past its deadline at now.
func (t *Transfer) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
