// Package htmlsanitize cleans user-supplied text before it is stored.
//
// Group descriptions may carry light formatting and go through Sanitize.
// Chat messages and names are plain text and go through PlainText, which
// drops all markup but keeps the characters users typed.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcOnce sync.Once
	ugc     *bluemonday.Policy

	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	ugcOnce.Do(func() {
		ugc = bluemonday.UGCPolicy()
		ugc.RequireNoFollowOnLinks(true)
		ugc.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return ugc
}

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() { strict = bluemonday.StrictPolicy() })
	return strict
}

// Sanitize keeps safe formatting (lists, emphasis, links) and removes
// scripts, event handlers and javascript: URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugcPolicy().Sanitize(s)
}

// PlainText strips every tag (and the bodies of script/style elements) and
// returns unescaped text, so "a < b & c" survives unchanged.
func PlainText(s string) string {
	if IsPlainText(s) {
		return s
	}
	return html.UnescapeString(strictPolicy().Sanitize(s))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	i := strings.IndexByte(s, '<')
	return i < 0 || !strings.Contains(s[i:], ">")
}
