// Package filter is the nostr REQ filter, reduced to the fields zap and wallet
// subscriptions use, with the JSON encoding and event matching.
package filter

import (
	"bytes"
	"sort"
	"strconv"

	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/text"
	"zapbox.lol/timestamp"
)

// T is the query form for requesting events from a nostr relay.
type T struct {
	IDs     [][]byte
	Kinds   []*kind.T
	Authors [][]byte
	// Tags maps a single letter tag key (without the #) to the accepted values.
	Tags  map[string][][]byte
	Since *timestamp.T
	Until *timestamp.T
	Limit *uint
}

// L is a helper to make a limit pointer.
func L(l uint) *uint { return &l }

// Marshal appends the JSON form of the filter. Tag keys are written in sorted
// order so the same filter always encodes the same way.
func (f *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '{')
	first := true
	sep := func() {
		if !first {
			dst = append(dst, ',')
		}
		first = false
	}
	if len(f.IDs) > 0 {
		sep()
		dst = text.JSONKey(dst, []byte("ids"))
		dst = text.AppendQuotedList(dst, f.IDs, hex.EncAppend)
	}
	if len(f.Kinds) > 0 {
		sep()
		dst = text.JSONKey(dst, []byte("kinds"))
		dst = append(dst, '[')
		for i, k := range f.Kinds {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = k.Marshal(dst)
		}
		dst = append(dst, ']')
	}
	if len(f.Authors) > 0 {
		sep()
		dst = text.JSONKey(dst, []byte("authors"))
		dst = text.AppendQuotedList(dst, f.Authors, hex.EncAppend)
	}
	keys := make([]string, 0, len(f.Tags))
	for k := range f.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sep()
		dst = text.JSONKey(dst, []byte("#"+k))
		if isBinaryTag(k) {
			dst = text.AppendQuotedList(dst, f.Tags[k], hex.EncAppend)
		} else {
			dst = text.AppendQuotedList(dst, f.Tags[k], text.NostrEscape)
		}
	}
	if f.Since != nil {
		sep()
		dst = text.JSONKey(dst, []byte("since"))
		dst = f.Since.Marshal(dst)
	}
	if f.Until != nil {
		sep()
		dst = text.JSONKey(dst, []byte("until"))
		dst = f.Until.Marshal(dst)
	}
	if f.Limit != nil {
		sep()
		dst = text.JSONKey(dst, []byte("limit"))
		dst = strconv.AppendUint(dst, uint64(*f.Limit), 10)
	}
	dst = append(dst, '}')
	return dst
}

func (f *T) Serialize() []byte { return f.Marshal(nil) }

func contains(list [][]byte, v []byte) bool {
	for _, l := range list {
		if bytes.Equal(l, v) {
			return true
		}
	}
	return false
}

// Match reports whether an event satisfies every populated field of the
// filter. Limit is not considered.
func (f *T) Match(ev *event.T) bool {
	if ev == nil {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, ev.ID) {
		return false
	}
	if len(f.Kinds) > 0 {
		var found bool
		for _, k := range f.Kinds {
			if k.Equal(ev.Kind) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Authors) > 0 && !contains(f.Authors, ev.Pubkey) {
		return false
	}
	for k, values := range f.Tags {
		var found bool
		for _, tg := range ev.Tags.GetAll([]byte(k)).Value() {
			if contains(values, decodeTagValue(k, tg.Value())) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt.I64() < f.Since.I64() {
		return false
	}
	if f.Until != nil && ev.CreatedAt.I64() > f.Until.I64() {
		return false
	}
	return true
}

// decodeTagValue gives e and p tag values in the binary form filters hold them
// in; other tags compare as text.
func decodeTagValue(k string, v []byte) []byte {
	if isBinaryTag(k) {
		if b, err := hex.DecAppend(nil, v); err == nil {
			return b
		}
	}
	return v
}

func isBinaryTag(k string) bool { return k == "e" || k == "p" }
