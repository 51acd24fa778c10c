package cryptox

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("correct-horse-battery-staple-one-two-three-four")

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func encrypt(t *testing.T, plaintext []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encrypt(context.Background(), bytes.NewReader(plaintext), &buf, testSecret))
	return buf.Bytes()
}

// splitStream cuts an encrypted stream into its header and encoded frames.
func splitStream(t *testing.T, data []byte) ([]byte, [][]byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(data), HeaderSize)
	header := data[:HeaderSize]
	rest := data[HeaderSize:]

	var frames [][]byte
	for len(rest) > 0 {
		require.GreaterOrEqual(t, len(rest), FrameHeaderSize)
		n := int(binary.BigEndian.Uint32(rest[1:FrameHeaderSize]))
		end := FrameHeaderSize + n
		frames = append(frames, rest[:end])
		rest = rest[end:]
	}
	return header, frames
}

func join(header []byte, frames [][]byte) []byte {
	out := bytes.Clone(header)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func decrypt(data []byte, secret []byte) ([]byte, error) {
	var out bytes.Buffer
	err := Decrypt(context.Background(), bytes.NewReader(data), &out, secret)
	return out.Bytes(), err
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	sizes := map[string]int{
		"empty":         0,
		"one byte":      1,
		"chunk minus 1": ChunkSize - 1,
		"exact chunk":   ChunkSize,
		"chunk plus 1":  ChunkSize + 1,
		"multi chunk":   3*ChunkSize + 17,
		"two exact":     2 * ChunkSize,
	}
	for name, size := range sizes {
		t.Run(name, func(t *testing.T) {
			plaintext := randomPayload(t, size)
			sealed := encrypt(t, plaintext)

			got, err := decrypt(sealed, testSecret)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(plaintext, got), "plaintext mismatch")
		})
	}
}

func TestEncrypt_FrameLayout(t *testing.T) {
	cases := []struct {
		size   int
		frames int
	}{
		{0, 1},
		{1, 1},
		{ChunkSize, 1},
		{ChunkSize + 1, 2},
		{2 * ChunkSize, 2},
	}
	for _, tc := range cases {
		_, frames := splitStream(t, encrypt(t, make([]byte, tc.size)))
		require.Len(t, frames, tc.frames, "size %d", tc.size)
		for i, f := range frames {
			assert.Equal(t, i == len(frames)-1, f[0]&flagFinal != 0, "final flag on frame %d", i)
		}
	}
}

func TestDecrypt_CiphertextBitFlip(t *testing.T) {
	sealed := encrypt(t, randomPayload(t, ChunkSize+100))

	// one position inside each frame body plus one in the header salt
	positions := []int{
		HeaderSize + FrameHeaderSize + 10,
		len(sealed) - 1,
		HeaderSize - 30,
	}
	for _, pos := range positions {
		tampered := bytes.Clone(sealed)
		tampered[pos] ^= 0x01
		_, err := decrypt(tampered, testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity, "flip at %d", pos)
	}
}

func TestDecrypt_FlagBitFlip(t *testing.T) {
	header, frames := splitStream(t, encrypt(t, randomPayload(t, 2*ChunkSize+5)))
	require.Len(t, frames, 3)

	t.Run("final set early", func(t *testing.T) {
		fs := [][]byte{bytes.Clone(frames[0]), frames[1], frames[2]}
		fs[0][0] |= flagFinal
		_, err := decrypt(join(header, fs), testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	t.Run("final cleared", func(t *testing.T) {
		fs := [][]byte{frames[0], frames[1], bytes.Clone(frames[2])}
		fs[2][0] &^= flagFinal
		_, err := decrypt(join(header, fs), testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	t.Run("unknown flag", func(t *testing.T) {
		fs := [][]byte{bytes.Clone(frames[0]), frames[1], frames[2]}
		fs[0][0] |= 0x80
		_, err := decrypt(join(header, fs), testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})
}

func TestDecrypt_ReorderedFrames(t *testing.T) {
	header, frames := splitStream(t, encrypt(t, randomPayload(t, 2*ChunkSize+5)))
	require.Len(t, frames, 3)

	swapped := [][]byte{frames[1], frames[0], frames[2]}
	_, err := decrypt(join(header, swapped), testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_DuplicatedFrame(t *testing.T) {
	header, frames := splitStream(t, encrypt(t, randomPayload(t, ChunkSize+5)))
	require.Len(t, frames, 2)

	dup := [][]byte{frames[0], frames[0], frames[1]}
	_, err := decrypt(join(header, dup), testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_Truncation(t *testing.T) {
	sealed := encrypt(t, randomPayload(t, 2*ChunkSize+5))
	header, frames := splitStream(t, sealed)

	t.Run("missing final frame", func(t *testing.T) {
		_, err := decrypt(join(header, frames[:2]), testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	t.Run("cut inside frame", func(t *testing.T) {
		_, err := decrypt(sealed[:len(sealed)-7], testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	t.Run("cut inside frame header", func(t *testing.T) {
		_, err := decrypt(sealed[:HeaderSize+2], testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := decrypt(header, testSecret)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})
}

func TestDecrypt_TrailingData(t *testing.T) {
	sealed := encrypt(t, []byte("hello"))
	_, frames := splitStream(t, sealed)

	_, err := decrypt(append(bytes.Clone(sealed), frames[0]...), testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = decrypt(append(bytes.Clone(sealed), 0x00), testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_OversizeFrame(t *testing.T) {
	sealed := encrypt(t, []byte("hello"))
	tampered := bytes.Clone(sealed)
	binary.BigEndian.PutUint32(tampered[HeaderSize+1:], MaxFrameSize+1)

	_, err := decrypt(tampered, testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_WrongSecret(t *testing.T) {
	sealed := encrypt(t, []byte("top secret"))

	_, err := decrypt(sealed, []byte("wrong-secret"))
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_BadMagic(t *testing.T) {
	sealed := encrypt(t, []byte("top secret"))
	sealed[1] = 'Y'

	_, err := decrypt(sealed, testSecret)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestDecrypt_ReaderError(t *testing.T) {
	sealed := encrypt(t, randomPayload(t, ChunkSize+5))
	boom := errors.New("connection reset")
	r := io.MultiReader(bytes.NewReader(sealed[:HeaderSize+100]), iotest.ErrReader(boom))

	err := Decrypt(context.Background(), r, io.Discard, testSecret)
	assert.ErrorIs(t, err, boom)
}

func TestEncryptStream_ReaderError(t *testing.T) {
	boom := errors.New("disk gone")
	out := make(chan []byte, QueueDepth)

	done := make(chan error, 1)
	go func() { done <- EncryptStream(context.Background(), iotest.ErrReader(boom), testSecret, out) }()

	for range out {
	}
	assert.ErrorIs(t, <-done, boom)
}

func TestEncryptStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered and never drained: the first send must observe cancellation
	out := make(chan []byte)
	err := EncryptStream(ctx, bytes.NewReader([]byte("data")), testSecret, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSealer_RejectsAfterFinal(t *testing.T) {
	h, err := NewHeader()
	require.NoError(t, err)
	s, err := NewSealer(make([]byte, KeySize), h)
	require.NoError(t, err)

	_, err = s.Seal([]byte("a"), true)
	require.NoError(t, err)
	_, err = s.Seal([]byte("b"), false)
	assert.Error(t, err)
}

func TestSealerOpener_Direct(t *testing.T) {
	h, err := NewHeader()
	require.NoError(t, err)
	key := bytes.Repeat([]byte{7}, KeySize)

	s, err := NewSealer(key, h)
	require.NoError(t, err)
	o, err := NewOpener(key, h)
	require.NoError(t, err)

	for i, chunk := range [][]byte{[]byte("first"), []byte("second")} {
		raw, err := s.Seal(chunk, i == 1)
		require.NoError(t, err)
		f, err := ReadFrame(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, f.Bytes())

		pt, err := o.Open(f)
		require.NoError(t, err)
		assert.Equal(t, chunk, pt)
	}
	assert.NoError(t, o.Finish())
}
