// Package action defines the intent action record and its URL checks.
package action

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when the URL string does not parse.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnfollowable is returned when the URL parses but its scheme is not
	// whitelisted or the opener cannot handle it.
	ErrUnfollowable = errors.New("unfollowable url")
)

// Opener is the OS collaborator that opens URLs.
type Opener interface {
	// CanOpen reports whether u could be opened. It has no side effects.
	CanOpen(u *url.URL) bool
	// Open requests that u be opened. The result is not observed.
	Open(u *url.URL)
}

// Record is a single key/URL pair.
type Record struct {
	key string
	URL string
}

// New creates a record. The URL is not validated here.
func New(key, rawURL string) Record {
	return Record{key: key, URL: rawURL}
}

// Key returns the record's identity.
func (r Record) Key() string {
	return r.key
}

// ValidateURL parses the record's URL.
func (r Record) ValidateURL() (*url.URL, error) {
	return ParseURL(r.URL)
}

// CanFollow validates the URL and checks it against the scheme whitelist and
// the opener.
func (r Record) CanFollow(schemes Schemes, o Opener) (*url.URL, error) {
	u, err := r.ValidateURL()
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || !schemes.Contains(u.Scheme) {
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrUnfollowable, u.Scheme)
	}
	if o == nil || !o.CanOpen(u) {
		return nil, fmt.Errorf("%w: no handler for %q", ErrUnfollowable, u.Scheme)
	}
	return u, nil
}

// Follow runs CanFollow and, on success, asks the opener to open the URL.
// Each call opens again; callers invoke it once per user request.
func (r Record) Follow(schemes Schemes, o Opener) (*url.URL, error) {
	u, err := r.CanFollow(schemes, o)
	if err != nil {
		return nil, err
	}
	o.Open(u)
	return u, nil
}

// Compare orders records by key.
func Compare(a, b Record) int {
	return strings.Compare(a.key, b.key)
}

// ParseURL parses raw as an RFC 3986 URL reference. Empty strings and
// strings with characters that must be percent-encoded (spaces, quotes,
// non-ASCII) are rejected; url.Parse alone accepts both.
func ParseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	for i, c := range raw {
		if !isURLChar(c) {
			return nil, fmt.Errorf("%w: illegal character %q at %d", ErrInvalidURL, c, i)
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return u, nil
}

// isURLChar reports whether c may appear unescaped in a URL: unreserved,
// reserved (gen-delims and sub-delims) or '%'.
func isURLChar(c rune) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.ContainsRune("-._~:/?#[]@!$&'()*+,;=%", c)
}

// Message returns the text shown to a user for a check or follow error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "Bad URL"
	case errors.Is(err, ErrUnfollowable):
		return "Can't Follow This URL"
	default:
		return err.Error()
	}
}
