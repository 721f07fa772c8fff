// Package capability decides whether an actor may invoke a command based on
// the roles the actor holds.
package capability

// RoleID identifies a guild role. It is a distinct type so role ids are not
// compared against channel, message or user ids by accident.
type RoleID string

// Set is the set of roles an actor currently holds.
type Set map[RoleID]struct{}

// NewSet builds a Set from the given role ids. Empty ids are ignored.
func NewSet(ids ...RoleID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// FromStrings builds a Set from raw platform role id strings.
func FromStrings(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[RoleID(id)] = struct{}{}
	}
	return s
}

// Has reports whether the set contains id.
func (s Set) Has(id RoleID) bool {
	_, ok := s[id]
	return ok
}

// CanInvoke reports whether an actor holding roles may invoke a command that
// requires any one of required. An empty requirement list allows everyone.
// Roles that do not exist in the guild never match, so the result is false
// rather than an error.
func CanInvoke(roles Set, required []RoleID) bool {
	if len(required) == 0 {
		return true
	}
	for _, id := range required {
		if roles.Has(id) {
			return true
		}
	}
	return false
}
