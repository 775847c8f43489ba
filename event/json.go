package event

import (
	"encoding/json"

	"zapbox.lol/chk"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/tags"
	"zapbox.lol/text"
	"zapbox.lol/timestamp"
)

var (
	jID        = []byte("id")
	jPubkey    = []byte("pubkey")
	jCreatedAt = []byte("created_at")
	jKind      = []byte("kind")
	jTags      = []byte("tags")
	jContent   = []byte("content")
	jSig       = []byte("sig")
)

// Marshal appends the minified JSON form of an event.T to dst.
func (ev *T) Marshal(dst []byte) (b []byte) {
	dst = append(dst, '{')
	dst = text.JSONKey(dst, jID)
	dst = text.AppendQuote(dst, ev.ID, hex.EncAppend)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jPubkey)
	dst = text.AppendQuote(dst, ev.Pubkey, hex.EncAppend)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jCreatedAt)
	dst = ev.CreatedAt.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jKind)
	dst = ev.Kind.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jTags)
	dst = ev.Tags.Marshal(dst)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jContent)
	dst = text.AppendQuote(dst, ev.Content, text.NostrEscape)
	dst = append(dst, ',')
	dst = text.JSONKey(dst, jSig)
	dst = text.AppendQuote(dst, ev.Sig, hex.EncAppend)
	dst = append(dst, '}')
	b = dst
	return
}

// Serialize renders the event as JSON in a new slice.
func (ev *T) Serialize() (b []byte) { return ev.Marshal(nil) }

// J is the plain JSON shape of an event, used for decoding.
type J struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int32      `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// ToEvent converts the decoded JSON form into an event.T, checking the sizes of
// the binary fields.
func (j J) ToEvent() (ev *T, err error) {
	ev = &T{
		CreatedAt: timestamp.FromUnix(j.CreatedAt),
		Kind:      kind.New(j.Kind),
		Tags:      tags.FromStrings(j.Tags...),
		Content:   []byte(j.Content),
	}
	if ev.ID, err = hex.DecFixed(j.ID, 32); chk.D(err) {
		return
	}
	if ev.Pubkey, err = hex.DecFixed(j.Pubkey, 32); chk.D(err) {
		return
	}
	if ev.Sig, err = hex.DecFixed(j.Sig, 64); chk.D(err) {
		return
	}
	return
}

// Unmarshal decodes an event from its JSON form.
func (ev *T) Unmarshal(b []byte) (err error) {
	var j J
	if err = json.Unmarshal(b, &j); chk.D(err) {
		return
	}
	var e *T
	if e, err = j.ToEvent(); err != nil {
		return
	}
	*ev = *e
	return
}

// MarshalJSON implements json.Marshaler so events nest inside other JSON.
func (ev *T) MarshalJSON() ([]byte, error) { return ev.Marshal(nil), nil }

// UnmarshalJSON implements json.Unmarshaler.
func (ev *T) UnmarshalJSON(b []byte) error { return ev.Unmarshal(b) }

// Parse is a shortcut for decoding an event from JSON.
func Parse(b []byte) (ev *T, err error) {
	ev = New()
	if err = ev.Unmarshal(b); err != nil {
		ev = nil
	}
	return
}
