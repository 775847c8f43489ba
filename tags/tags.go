// Package tags is the ordered list of tags carried by an event.
package tags

import (
	"zapbox.lol/tag"
)

// T is a list of tag.T - which are lists of string elements with ordering and
// no uniqueness constraint (not a set).
type T struct {
	t []*tag.T
}

func New(fields ...*tag.T) (t *T) {
	t = &T{t: make([]*tag.T, 0, len(fields))}
	t.t = append(t.t, fields...)
	return
}

// FromStrings builds tags from their JSON string array form.
func FromStrings(s ...[]string) (t *T) {
	t = &T{t: make([]*tag.T, 0, len(s))}
	for _, f := range s {
		t.t = append(t.t, tag.New(f...))
	}
	return
}

func (t *T) Len() (l int) {
	if t == nil {
		return
	}
	return len(t.t)
}

// Value returns the underlying slice of tags.
func (t *T) Value() (tt []*tag.T) {
	if t == nil {
		return nil
	}
	return t.t
}

// AppendTags adds tags to the end of the list.
func (t *T) AppendTags(tt ...*tag.T) *T {
	if t == nil {
		t = &T{}
	}
	t.t = append(t.t, tt...)
	return t
}

// GetFirst returns the first tag whose key is exactly k, or nil.
func (t *T) GetFirst(k []byte) *tag.T {
	for _, v := range t.Value() {
		if v.IsKey(k) {
			return v
		}
	}
	return nil
}

// GetFirstValue returns the value of the first tag with key k, and whether a
// tag with that key exists at all.
func (t *T) GetFirstValue(k []byte) (v []byte, found bool) {
	tg := t.GetFirst(k)
	if tg == nil {
		return
	}
	return tg.Value(), true
}

// GetAll returns every tag whose key is exactly k.
func (t *T) GetAll(k []byte) *T {
	result := &T{}
	for _, v := range t.Value() {
		if v.IsKey(k) {
			result.t = append(result.t, v)
		}
	}
	return result
}

// ContainsKey reports whether any tag has key k.
func (t *T) ContainsKey(k []byte) bool { return t.GetFirst(k) != nil }

func (t *T) ToStringSlice() (b [][]string) {
	b = make([][]string, 0, t.Len())
	for _, v := range t.Value() {
		b = append(b, v.ToStringSlice())
	}
	return
}

func (t *T) Clone() (c *T) {
	c = &T{t: make([]*tag.T, 0, t.Len())}
	for _, field := range t.Value() {
		c.t = append(c.t, field.Clone())
	}
	return
}

// Marshal encodes the tags as a JSON array of arrays of strings.
func (t *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '[')
	for i, tt := range t.Value() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = tt.Marshal(dst)
	}
	dst = append(dst, ']')
	return dst
}
