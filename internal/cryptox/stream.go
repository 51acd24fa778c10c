package cryptox

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/gophxfer/internal/shared"
	"golang.org/x/sync/errgroup"
)

// EncryptStream reads plaintext from r and sends the encoded header followed
// by one encoded frame per chunk to out. It closes out when it returns.
func EncryptStream(ctx context.Context, r io.Reader, secret []byte, out chan<- []byte) error {
	defer close(out)

	h, err := NewHeader()
	if err != nil {
		return err
	}
	key := DeriveKey(secret, h.Salt[:])
	sealer, err := NewSealer(key, h)
	shared.WipeByteArray(key)
	if err != nil {
		return err
	}

	if err := send(ctx, out, h.Bytes()); err != nil {
		return err
	}

	cur, last, err := readChunk(r)
	if err != nil {
		return err
	}
	for {
		if !last {
			next, nextLast, err := readChunk(r)
			if err != nil {
				return err
			}
			// A full chunk followed by nothing is the final one.
			if len(next) == 0 && nextLast {
				last = true
			} else {
				frame, err := sealer.Seal(cur, false)
				if err != nil {
					return err
				}
				if err := send(ctx, out, frame); err != nil {
					return err
				}
				cur, last = next, nextLast
				continue
			}
		}

		frame, err := sealer.Seal(cur, true)
		if err != nil {
			return err
		}
		return send(ctx, out, frame)
	}
}

// readChunk reads up to ChunkSize bytes. last is set once r is exhausted.
func readChunk(r io.Reader) (chunk []byte, last bool, err error) {
	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return buf, false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:n], true, nil
	default:
		return nil, false, err
	}
}

func send[T any](ctx context.Context, out chan<- T, v T) error {
	select {
	case out <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrames decodes frames from r, which must be positioned after the
// header, and sends them to out until r is exhausted. It closes out when it
// returns.
func ReadFrames(ctx context.Context, r io.Reader, out chan<- Frame) error {
	defer close(out)
	for {
		f, err := ReadFrame(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := send(ctx, out, f); err != nil {
			return err
		}
	}
}

// DecryptFrames opens every frame received on in and writes the plaintext to
// w. The stream must end with exactly one final frame.
func DecryptFrames(ctx context.Context, key []byte, h Header, in <-chan Frame, w io.Writer) error {
	opener, err := NewOpener(key, h)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				return opener.Finish()
			}
			pt, err := opener.Open(f)
			if err != nil {
				return err
			}
			if _, err := w.Write(pt); err != nil {
				return err
			}
		}
	}
}

// Encrypt writes the encrypted form of r to w.
func Encrypt(ctx context.Context, r io.Reader, w io.Writer, secret []byte) error {
	g, ctx := errgroup.WithContext(ctx)
	frames := make(chan []byte, QueueDepth)

	g.Go(func() error { return EncryptStream(ctx, r, secret, frames) })
	g.Go(func() error {
		for b := range frames {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// Decrypt authenticates the encrypted stream r and writes its plaintext to
// w. Plaintext of frames that verified may already have been written when an
// integrity error is returned; callers must discard it.
func Decrypt(ctx context.Context, r io.Reader, w io.Writer, secret []byte) error {
	h, err := ReadHeader(r)
	if err != nil {
		return err
	}
	key := DeriveKey(secret, h.Salt[:])
	defer shared.WipeByteArray(key)

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan Frame, QueueDepth)

	var readErr error
	g.Go(func() error {
		readErr = ReadFrames(gctx, r, frames)
		return readErr
	})
	g.Go(func() error { return DecryptFrames(gctx, key, h, frames, w) })

	err = g.Wait()
	// A transport failure explains a missing final frame better than the
	// opener does.
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		return readErr
	}
	return err
}
