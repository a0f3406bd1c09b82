package action

import (
	"slices"
	"strings"
)

// Schemes is an immutable set of URL schemes the application may ask the
// opener to handle. Scheme names compare case-insensitively.
type Schemes struct {
	set map[string]struct{}
}

// NewSchemes builds a whitelist from the declared scheme names. Blank names
// are ignored; a trailing ':' or "://" is stripped.
func NewSchemes(names ...string) Schemes {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		n = strings.TrimSuffix(strings.TrimSuffix(n, "//"), ":")
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return Schemes{set: set}
}

// Contains reports whether scheme is whitelisted.
func (s Schemes) Contains(scheme string) bool {
	_, ok := s.set[strings.ToLower(scheme)]
	return ok
}

// Len returns the number of whitelisted schemes.
func (s Schemes) Len() int {
	return len(s.set)
}

// List returns the schemes in sorted order.
func (s Schemes) List() []string {
	out := make([]string, 0, len(s.set))
	for n := range s.set {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
