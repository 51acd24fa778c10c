package cryptox

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// Frame is one sealed chunk as read from the wire.
type Frame struct {
	Flags      byte
	Ciphertext []byte
}

func (f Frame) Final() bool { return f.Flags&flagFinal != 0 }

// Bytes encodes the frame in its wire form.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameHeaderSize, FrameHeaderSize+len(f.Ciphertext))
	b[0] = f.Flags
	binary.BigEndian.PutUint32(b[1:], uint32(len(f.Ciphertext)))
	return append(b, f.Ciphertext...)
}

// ReadFrame reads the next frame from r. A clean end of input before any
// frame byte returns io.EOF; anything else short is an integrity failure.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("%w: truncated frame header", common.ErrIntegrity)
		}
		return Frame{}, err
	}

	n := binary.BigEndian.Uint32(hdr[1:])
	if n < Overhead || n > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: frame length %d out of range", common.ErrIntegrity, n)
	}

	ct := make([]byte, n)
	if _, err := io.ReadFull(r, ct); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("%w: truncated frame", common.ErrIntegrity)
		}
		return Frame{}, err
	}
	return Frame{Flags: hdr[0], Ciphertext: ct}, nil
}

// Sealer seals consecutive chunks of one stream.
type Sealer struct {
	aead    cipher.AEAD
	version byte
	nonce   [NonceSize]byte
	seq     uint64
	done    bool
}

func NewSealer(key []byte, h Header) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead, version: h.Version, nonce: h.Nonce}, nil
}

// Seal encrypts the next chunk and returns its encoded frame. No chunk may
// follow a final one.
func (s *Sealer) Seal(chunk []byte, final bool) ([]byte, error) {
	if s.done {
		return nil, errors.New("seal after final chunk")
	}
	if len(chunk) > ChunkSize {
		return nil, fmt.Errorf("chunk of %d bytes exceeds %d", len(chunk), ChunkSize)
	}
	if s.seq == math.MaxUint64 {
		return nil, errors.New("sequence number exhausted")
	}

	var flags byte
	if final {
		flags |= flagFinal
	}

	frame := make([]byte, FrameHeaderSize, FrameHeaderSize+len(chunk)+Overhead)
	frame[0] = flags
	frame = s.aead.Seal(frame, nonceFor(s.nonce, s.seq), chunk, additionalData(s.version, s.seq, final))
	binary.BigEndian.PutUint32(frame[1:FrameHeaderSize], uint32(len(frame)-FrameHeaderSize))

	s.seq++
	s.done = final
	return frame, nil
}

// Opener authenticates and decrypts the frames of one stream in order.
type Opener struct {
	aead    cipher.AEAD
	version byte
	nonce   [NonceSize]byte
	seq     uint64
	done    bool
}

func NewOpener(key []byte, h Header) (*Opener, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Opener{aead: aead, version: h.Version, nonce: h.Nonce}, nil
}

// Open returns the plaintext of the next frame.
func (o *Opener) Open(f Frame) ([]byte, error) {
	if o.done {
		return nil, fmt.Errorf("%w: data after final frame", common.ErrIntegrity)
	}
	if f.Flags&^flagFinal != 0 {
		return nil, fmt.Errorf("%w: unknown frame flags %#x", common.ErrIntegrity, f.Flags)
	}

	final := f.Final()
	pt, err := o.aead.Open(nil, nonceFor(o.nonce, o.seq), f.Ciphertext, additionalData(o.version, o.seq, final))
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d failed authentication", common.ErrIntegrity, o.seq)
	}

	o.seq++
	o.done = final
	return pt, nil
}

// Finish reports whether the stream ended with its final frame.
func (o *Opener) Finish() error {
	if !o.done {
		return fmt.Errorf("%w: stream ended without final frame", common.ErrIntegrity)
	}
	return nil
}
