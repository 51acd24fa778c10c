// Package cryptox implements the transfer stream cipher.
//
// A stream starts with a plaintext header that carries the protocol magic,
// version, the argon2id salt and the base nonce:
//
//	"XFR" | version(1) | salt(16) | nonce(24)
//
// The header is followed by frames, each holding one sealed chunk of at most
// ChunkSize plaintext bytes:
//
//	flags(1) | length(4, big endian) | ciphertext(length)
//
// Chunks are sealed with XChaCha20-Poly1305. The nonce of chunk n is the base
// nonce with its last 8 bytes XORed with n, and the additional data binds the
// version, the sequence number and the final flag, so reordering, dropping,
// duplicating or truncating frames fails authentication.
package cryptox

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/dmitrijs2005/gophxfer/internal/shared"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	Version byte = 0x01

	SaltSize   = 16
	NonceSize  = chacha20poly1305.NonceSizeX
	KeySize    = chacha20poly1305.KeySize
	Overhead   = chacha20poly1305.Overhead
	HeaderSize = len(magic) + 1 + SaltSize + NonceSize

	ChunkSize       = 256 << 10
	FrameHeaderSize = 5
	MaxFrameSize    = ChunkSize + Overhead

	// QueueDepth bounds the channels between pipeline stages.
	QueueDepth = 4

	flagFinal byte = 0x01

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

const magic = "XFR"

// Header is the plaintext prefix of an encrypted stream.
type Header struct {
	Version byte
	Salt    [SaltSize]byte
	Nonce   [NonceSize]byte
}

// NewHeader returns a header with a fresh random salt and base nonce.
func NewHeader() (Header, error) {
	h := Header{Version: Version}
	b, err := shared.RandomBytes(SaltSize + NonceSize)
	if err != nil {
		return Header{}, err
	}
	copy(h.Salt[:], b[:SaltSize])
	copy(h.Nonce[:], b[SaltSize:])
	return h, nil
}

// Bytes encodes the header in its wire form.
func (h Header) Bytes() []byte {
	b := make([]byte, 0, HeaderSize)
	b = append(b, magic...)
	b = append(b, h.Version)
	b = append(b, h.Salt[:]...)
	b = append(b, h.Nonce[:]...)
	return b
}

// CheckHeader validates the magic and version found at the start of prefix.
// The relay uses it to turn away uploads that are not protocol streams.
func CheckHeader(prefix []byte) error {
	if len(prefix) < HeaderSize {
		return fmt.Errorf("%w: short header", common.ErrIntegrity)
	}
	if !bytes.Equal(prefix[:len(magic)], []byte(magic)) {
		return fmt.Errorf("%w: bad magic", common.ErrIntegrity)
	}
	if v := prefix[len(magic)]; v != Version {
		return fmt.Errorf("%w: unsupported version %d", common.ErrIntegrity, v)
	}
	return nil
}

// ParseHeader decodes a wire header.
func ParseHeader(b []byte) (Header, error) {
	if err := CheckHeader(b); err != nil {
		return Header{}, err
	}
	h := Header{Version: b[len(magic)]}
	off := len(magic) + 1
	copy(h.Salt[:], b[off:off+SaltSize])
	copy(h.Nonce[:], b[off+SaltSize:HeaderSize])
	return h, nil
}

// ReadHeader reads and decodes the header at the start of r.
func ReadHeader(r io.Reader) (Header, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, fmt.Errorf("%w: truncated header", common.ErrIntegrity)
		}
		return Header{}, err
	}
	return ParseHeader(b)
}

// DeriveKey stretches the secret into a stream key with argon2id. The
// parameters are fixed by protocol version 1.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, KeySize)
}

func nonceFor(base [NonceSize]byte, seq uint64) []byte {
	n := base
	off := NonceSize - 8
	for i := 0; i < 8; i++ {
		n[off+i] ^= byte(seq >> (56 - 8*i))
	}
	return n[:]
}

func additionalData(version byte, seq uint64, final bool) []byte {
	ad := make([]byte, 10)
	ad[0] = version
	for i := 0; i < 8; i++ {
		ad[1+i] = byte(seq >> (56 - 8*i))
	}
	if final {
		ad[9] = 1
	}
	return ad
}
