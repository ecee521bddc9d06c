package permission

import "sort"

// Set is the flat collection of permission names held by an authenticated
// user. Queries are plain set membership; there is no hierarchy and no
// policy language.
type Set map[string]struct{}

// NewSet builds a set from permission names. Duplicates collapse.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the named permission is held.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether at least one of the required permissions is held.
// An empty required list is a vacuous non-match: access is never granted
// by forgetting to pass a permission list.
func (s Set) HasAny(required []string) bool {
	for _, n := range required {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required permission is held. An empty
// required list is vacuously satisfied.
func (s Set) HasAll(required []string) bool {
	for _, n := range required {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Names returns the held permission names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of held permissions.
func (s Set) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}
