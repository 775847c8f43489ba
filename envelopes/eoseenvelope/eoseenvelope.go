package eoseenvelope

import (
	"encoding/json"

	"zapbox.lol/envelopes"
	"zapbox.lol/text"
)

const L = "EOSE"

// T marks the end of stored events for a subscription.
type T struct {
	Subscription string
}

func NewFrom(sub string) *T { return &T{Subscription: sub} }

func (en *T) Label() string { return L }

func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(o []byte) []byte {
		return text.AppendQuote(o, []byte(en.Subscription), text.NostrEscape)
	})
}

func Parse(b []byte) (en *T, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 1); err != nil {
		return
	}
	en = &T{}
	if en.Subscription, err = envelopes.String(elems[0]); err != nil {
		en = nil
	}
	return
}
