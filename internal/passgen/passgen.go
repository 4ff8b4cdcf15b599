// Package passgen generates random passwords from selected character classes.
package passgen

import (
	"crypto/rand"
	"math/big"

	"github.com/dmitrijs2005/passvault/internal/common"
)

const (
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Numbers   = "0123456789"
	Symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>/?"
)

// MaxLength bounds a single generated password.
const MaxLength = 256

// Options selects the length and character classes of a generated password.
type Options struct {
	Length           int  `json:"length"`
	IncludeUppercase bool `json:"includeUppercase"`
	IncludeLowercase bool `json:"includeLowercase"`
	IncludeNumbers   bool `json:"includeNumbers"`
	IncludeSymbols   bool `json:"includeSymbols"`
}

func (o Options) classes() []string {
	var c []string
	if o.IncludeUppercase {
		c = append(c, Uppercase)
	}
	if o.IncludeLowercase {
		c = append(c, Lowercase)
	}
	if o.IncludeNumbers {
		c = append(c, Numbers)
	}
	if o.IncludeSymbols {
		c = append(c, Symbols)
	}
	return c
}

// Generate returns a password of o.Length characters containing at least one
// character of every enabled class. Randomness comes from crypto/rand.
func Generate(o Options) (string, error) {
	classes := o.classes()
	if len(classes) == 0 {
		return "", common.ErrNoCharacterClass
	}
	if o.Length < len(classes) {
		return "", common.ErrLengthTooShort
	}
	if o.Length > MaxLength {
		return "", common.ErrFieldTooLong
	}

	var pool string
	out := make([]byte, 0, o.Length)
	for _, c := range classes {
		ch, err := pick(c)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
		pool += c
	}
	for len(out) < o.Length {
		ch, err := pick(pool)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}
	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func pick(set string) (byte, error) {
	i, err := randIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
