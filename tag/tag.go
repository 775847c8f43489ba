// Package tag provides an implementation of a nostr tag, an array of strings
// with a usually single letter first "key" field, including methods to compare,
// marshal and access elements with their proper semantics.
package tag

import (
	"bytes"

	"golang.org/x/exp/constraints"

	"zapbox.lol/text"
)

// The tag position meanings, so they are clear when reading.
const (
	Key = iota
	Value
	Relay
)

// T is a list of strings with a literal ordering.
//
// Not a set, there can be repeating elements.
type T struct {
	field [][]byte
}

// New creates a new tag.T from a variadic parameter that can be either string
// or byte slice.
func New[V string | []byte](fields ...V) (t *T) {
	t = &T{field: make([][]byte, len(fields))}
	for i, field := range fields {
		t.field[i] = []byte(field)
	}
	return
}

// NewWithCap creates a new empty tag.T with a pre-allocated capacity for some
// number of fields.
func NewWithCap[V constraints.Integer](c V) *T { return &T{make([][]byte, 0, c)} }

// S returns a field of a tag.T as a string.
func (t *T) S(i int) (s string) {
	if t.Len() <= i {
		return
	}
	return string(t.field[i])
}

// B returns a field of a tag.T as a byte slice.
func (t *T) B(i int) (b []byte) {
	if t.Len() <= i {
		return
	}
	return t.field[i]
}

// Len returns the number of elements in a tag.T.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.field)
}

// Append fields to a tag.T.
func (t *T) Append(b ...[]byte) (tt *T) {
	tt = t
	if t == nil {
		tt = &T{}
	}
	tt.field = append(tt.field, b...)
	return
}

// Key returns the first element of the tag.
func (t *T) Key() []byte { return t.B(Key) }

// Value returns the second element of the tag.
func (t *T) Value() []byte { return t.B(Value) }

// IsKey reports whether the first element is exactly k.
func (t *T) IsKey(k []byte) bool { return t.Len() > Key && bytes.Equal(t.field[Key], k) }

// Clone makes a new tag.T with the same members.
func (t *T) Clone() (c *T) {
	if t == nil {
		return nil
	}
	c = &T{field: make([][]byte, 0, len(t.field))}
	for _, f := range t.field {
		c.field = append(c.field, append([]byte(nil), f...))
	}
	return
}

// ToStringSlice converts a tag.T to a slice of strings.
func (t *T) ToStringSlice() (b []string) {
	b = make([]string, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		b = append(b, string(t.field[i]))
	}
	return
}

// Marshal encodes a tag.T as standard minified JSON array of strings.
func (t *T) Marshal(dst []byte) (b []byte) {
	if t == nil {
		return append(dst, "[]"...)
	}
	return text.AppendQuotedList(dst, t.field, text.NostrEscape)
}

// Equal checks that the provided tag matches field for field.
func (t *T) Equal(ta *T) bool {
	if t.Len() != ta.Len() {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if !bytes.Equal(t.field[i], ta.field[i]) {
			return false
		}
	}
	return true
}
