// Package passwords hashes and checks group join passwords.
package passwords

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 4
	MaxLength = 72 // bcrypt ignores bytes past 72
)

var ErrLength = errors.New("password must be 4-72 bytes")

// Cost is the bcrypt work factor. DefaultCost (10) is roughly 100ms per
// comparison on current hardware. Tests lower it.
var Cost = bcrypt.DefaultCost

// Hash returns a salted bcrypt hash of plain.
func Hash(plain string) (string, error) {
	if len(plain) < MinLength || len(plain) > MaxLength {
		return "", ErrLength
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Matches compares in constant time. Any error (including a malformed hash)
// counts as a mismatch.
func Matches(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
