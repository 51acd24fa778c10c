// Package shared provides utility functions for working with
// random byte strings and secure memory wiping.
package shared

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophxfer/internal/common"
)

// randReader is a test seam for the secure random source.
var randReader io.Reader = rand.Reader

// RandomBytes returns size bytes read from the secure random source.
// A failing source is reported as common.ErrGeneration.
func RandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGeneration, err)
	}
	return b, nil
}

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the final string length is twice
// the size.
func MakeRandHexString(size int) (string, error) {
	b, err := RandomBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop derived keys and secrets from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
