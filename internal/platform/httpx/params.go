package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waa-mobile/waapos/internal/shared"
)

// DateLayout is the calendar date format accepted in bodies and query strings.
const DateLayout = "2006-01-02"

// ParseDate parses raw as a calendar date. An empty value yields the zero time.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, shared.Invalid(field, "expected YYYY-MM-DD")
	}
	return t, nil
}

// QueryDate reads an optional date from the query string.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	t, err := ParseDate(name, r.URL.Query().Get(name))
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// PathInt64 parses a numeric URL segment.
func PathInt64(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, shared.Invalid(field, "must be a positive number")
	}
	return n, nil
}

// PathParam returns a decoded URL parameter. chi matches on the escaped path when the
// request carries one (names with "/" or "%"), leaving the parameter escaped.
func PathParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", shared.Invalid(key, "malformed path segment")
	}
	return v, nil
}
