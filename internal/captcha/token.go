package captcha

import (
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
)

// DefaultTokenLength is used when Generate is asked for a non-positive length
// and the configuration does not say otherwise.
const DefaultTokenLength = 5

// MaxTokenLength caps the token length; every digit arms its own timer.
const MaxTokenLength = 16

// Token is the digit string the listener has to type back.
type Token string

// NewToken draws n independent digits, repeats allowed.
func NewToken(rng *rand.Rand, n int) Token {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(assets.Digits[rng.IntN(len(assets.Digits))])
	}
	return Token(b.String())
}

// Matches compares an answer against the token after removing every
// whitespace character from it. The comparison is exact.
func (t Token) Matches(answer string) bool {
	return t != "" && Token(stripSpace(answer)) == t
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Verdict is the outcome of a submitted answer.
type Verdict int

const (
	Incorrect Verdict = iota
	Correct
)

func (v Verdict) String() string {
	if v == Correct {
		return "correct"
	}
	return "incorrect"
}
