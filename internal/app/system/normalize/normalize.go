// Package normalize canonicalizes identifiers before they are stored or
// compared, so every call site agrees on one form.
package normalize

import (
	"regexp"
	"strings"
)

// Email lower-cases and trims an email address.
func Email(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Name trims surrounding space and collapses internal runs of whitespace.
func Name(s string) string { return strings.Join(strings.Fields(s), " ") }

// Provider canonicalizes an identity provider name ("Google" -> "google").
func Provider(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// UserID returns the stored form of a handle: trimmed and lower-cased.
func UserID(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// InviteCode returns the stored form of an invite code: trimmed and upper-cased.
func InviteCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// ValidUserID reports whether the trimmed candidate is an acceptable handle.
func ValidUserID(s string) bool { return userIDPattern.MatchString(strings.TrimSpace(s)) }
