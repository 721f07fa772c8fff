// Package token encodes the correlation tokens carried in the custom id of a
// rendered button. A token names the session kind that owns the button, the
// actor that started the session and an ordered list of session fields.
//
// Wire form: KIND_owner_field1_field2... Any '%' or '_' inside the owner or a
// field is percent-escaped, so decoding is never ambiguous.
package token

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLen is the longest custom id Discord accepts on a component.
const MaxLen = 100

const (
	delimiter = "_"
	escape    = '%'
)

// Kind selects the session handler that processes a component event.
type Kind string

const (
	KindDuel Kind = "DUEL"
	KindPoll Kind = "POLL"
)

var knownKinds = map[Kind]struct{}{
	KindDuel: {},
	KindPoll: {},
}

var (
	ErrMalformed   = errors.New("malformed correlation token")
	ErrUnknownKind = errors.New("unknown correlation token kind")
	ErrTooLong     = fmt.Errorf("correlation token exceeds %d characters", MaxLen)
	ErrEmptyOwner  = errors.New("correlation token owner is empty")
)

// Token is the decoded form of a correlation token.
type Token struct {
	Kind   Kind
	Owner  string
	Fields []string
}

// Field returns the i-th field or "" when absent.
func (t Token) Field(i int) string {
	if i < 0 || i >= len(t.Fields) {
		return ""
	}
	return t.Fields[i]
}

// Encode renders a token. It fails rather than producing a string that would
// not survive the platform limit or decode back to the same value.
func Encode(kind Kind, owner string, fields ...string) (string, error) {
	if _, ok := knownKinds[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if owner == "" {
		return "", ErrEmptyOwner
	}

	parts := make([]string, 0, 2+len(fields))
	parts = append(parts, string(kind), escapePart(owner))
	for _, f := range fields {
		parts = append(parts, escapePart(f))
	}

	s := strings.Join(parts, delimiter)
	if len(s) > MaxLen {
		return "", ErrTooLong
	}
	return s, nil
}

// String encodes t, see Encode.
func (t Token) String() (string, error) {
	return Encode(t.Kind, t.Owner, t.Fields...)
}

// Decode parses a custom id. It never panics; any input that was not produced
// by Encode yields an error.
func Decode(s string) (Token, error) {
	if s == "" || len(s) > MaxLen {
		return Token{}, ErrMalformed
	}

	parts := strings.Split(s, delimiter)
	if len(parts) < 2 {
		return Token{}, ErrMalformed
	}

	kind := Kind(parts[0])
	if _, ok := knownKinds[kind]; !ok {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownKind, parts[0])
	}

	owner, err := unescapePart(parts[1])
	if err != nil {
		return Token{}, err
	}
	if owner == "" {
		return Token{}, ErrMalformed
	}

	var fields []string
	if len(parts) > 2 {
		fields = make([]string, 0, len(parts)-2)
		for _, p := range parts[2:] {
			f, err := unescapePart(p)
			if err != nil {
				return Token{}, err
			}
			fields = append(fields, f)
		}
	}

	return Token{Kind: kind, Owner: owner, Fields: fields}, nil
}

func escapePart(s string) string {
	if !strings.ContainsAny(s, "%_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			b.WriteString("%25")
		case '_':
			b.WriteString("%5F")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func unescapePart(s string) (string, error) {
	if !strings.ContainsRune(s, escape) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != escape {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", ErrMalformed
		}
		switch s[i+1 : i+3] {
		case "25":
			b.WriteByte('%')
		case "5F":
			b.WriteByte('_')
		default:
			return "", ErrMalformed
		}
		i += 2
	}
	return b.String(), nil
}
