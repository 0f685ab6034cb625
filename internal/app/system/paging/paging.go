// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultLimit is the page size used when the client asks for none.
const DefaultLimit = 50

// MaxLimit caps any requested page size.
const MaxLimit = 100

// Window is an offset page.
type Window struct {
	Limit int64
	Skip  int64
}

// Clamp normalizes a requested window: a non-positive limit becomes
// DefaultLimit, limits above MaxLimit are capped, and negative skips are 0.
func Clamp(limit, skip int) Window {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if skip < 0 {
		skip = 0
	}
	return Window{Limit: int64(limit), Skip: int64(skip)}
}

// Parse reads "limit" and "skip" from the query string. Unparseable
// values fall back to the defaults.
func Parse(r *http.Request) Window {
	return Clamp(intParam(r, "limit"), intParam(r, "skip"))
}

func intParam(r *http.Request, key string) int {
	s := query.Get(r, key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
