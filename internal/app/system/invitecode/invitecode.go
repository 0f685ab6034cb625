// Package invitecode generates group invite codes.
package invitecode

import (
	"crypto/rand"
	"math/big"
)

// Alphabet omits 0/O and 1/I so codes survive being read aloud.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length of every invite code.
const Length = 6

// Generator produces candidate codes. Tests swap it for a scripted source.
type Generator func() (string, error)

// Random draws Length characters uniformly from Alphabet.
func Random() (string, error) {
	b := make([]byte, Length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Valid reports whether s has the shape of a generated code.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func isAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}
