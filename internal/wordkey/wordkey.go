// Package wordkey generates transfer identifiers and encryption secrets as
// sequences of words from the EFF large word list.
//
// An identifier is 4 words (about 51 bits) and names a transfer on the relay.
// A secret is 8 words (about 103 bits) and never leaves the client. Both are
// joined with '-' and combined into a transfer key of the form "<id>/<secret>".
package wordkey

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/sethvargo/go-diceware/diceware"
)

const (
	IdentifierWords = 4
	SecretWords     = 8
	Separator       = "-"
	KeySeparator    = "/"

	// upper bound on draws for a single word before giving up; only words
	// that themselves contain the separator are redrawn.
	maxDrawsPerWord = 64
)

// Generator draws words using its random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator backed by r, or crypto/rand when r is nil.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

var defaultGenerator = NewGenerator(nil)

// NewIdentifier returns a fresh 4-word transfer identifier.
func NewIdentifier() (string, error) { return defaultGenerator.Identifier() }

// NewSecret returns a fresh 8-word encryption secret.
func NewSecret() (string, error) { return defaultGenerator.Secret() }

func (g *Generator) Identifier() (string, error) { return g.phrase(IdentifierWords) }

func (g *Generator) Secret() (string, error) { return g.phrase(SecretWords) }

func (g *Generator) phrase(n int) (string, error) {
	d, err := diceware.NewGenerator(&diceware.GeneratorInput{RandReader: g.rand})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrGeneration, err)
	}

	words := make([]string, 0, n)
	for len(words) < n {
		w, err := g.word(d)
		if err != nil {
			return "", err
		}
		words = append(words, w)
	}
	return strings.Join(words, Separator), nil
}

func (g *Generator) word(d *diceware.Generator) (string, error) {
	for i := 0; i < maxDrawsPerWord; i++ {
		list, err := d.Generate(1)
		if err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrGeneration, err)
		}
		if len(list) == 1 && validWord(list[0]) {
			return list[0], nil
		}
	}
	return "", fmt.Errorf("%w: word list exhausted", common.ErrGeneration)
}

func validWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func validPhrase(s string, n int) bool {
	parts := strings.Split(s, Separator)
	if len(parts) != n {
		return false
	}
	for _, p := range parts {
		if !validWord(p) {
			return false
		}
	}
	return true
}

// ValidIdentifier reports whether s has the shape of a transfer identifier.
func ValidIdentifier(s string) bool { return validPhrase(s, IdentifierWords) }

// TransferKey is the token a sender hands to the recipient.
type TransferKey struct {
	ID     string
	Secret string
}

// NewTransferKey generates both halves of a key.
func NewTransferKey() (TransferKey, error) {
	id, err := NewIdentifier()
	if err != nil {
		return TransferKey{}, err
	}
	secret, err := NewSecret()
	if err != nil {
		return TransferKey{}, err
	}
	return TransferKey{ID: id, Secret: secret}, nil
}

func (k TransferKey) String() string {
	if k.Secret == "" {
		return k.ID
	}
	return k.ID + KeySeparator + k.Secret
}

// ParseTransferKey splits "<id>/<secret>". The secret part is optional so
// that callers can prompt for it separately.
func ParseTransferKey(s string) (TransferKey, error) {
	s = strings.TrimSpace(s)
	id, secret, _ := strings.Cut(s, KeySeparator)
	if !ValidIdentifier(id) {
		return TransferKey{}, fmt.Errorf("%w: %q", common.ErrInvalidIdentifier, id)
	}
	return TransferKey{ID: id, Secret: secret}, nil
}
