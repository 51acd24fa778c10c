// Package sizex parses and formats human-readable byte sizes ("50MB",
// "1.5 GiB") for configuration files, environment variables and flags.
package sizex

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ByteSize is a byte count that round-trips through its human form.
type ByteSize uint64

// Parse reads a size such as "50MB" or "1048576".
func Parse(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string { return humanize.Bytes(uint64(b)) }

// Int64 returns the size as a signed count, saturating at the max int64.
func (b ByteSize) Int64() int64 {
	if uint64(b) > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(b)
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string { return "bytesize" }

// UnmarshalText lets env decoders fill ByteSize fields.
func (b *ByteSize) UnmarshalText(text []byte) error {
	return b.Set(string(text))
}

func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	return b.Set(s)
}
