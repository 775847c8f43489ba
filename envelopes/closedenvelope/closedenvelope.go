package closedenvelope

import (
	"encoding/json"

	"zapbox.lol/envelopes"
	"zapbox.lol/text"
)

const L = "CLOSED"

// T is a relay ending a subscription, with a machine readable reason prefix.
type T struct {
	Subscription string
	Reason       string
}

func NewFrom(sub, reason string) *T { return &T{Subscription: sub, Reason: reason} }

func (en *T) Label() string { return L }

func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(o []byte) []byte {
		o = text.AppendQuote(o, []byte(en.Subscription), text.NostrEscape)
		o = append(o, ',')
		return text.AppendQuote(o, []byte(en.Reason), text.NostrEscape)
	})
}

func Parse(b []byte) (en *T, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 1); err != nil {
		return
	}
	en = &T{}
	if en.Subscription, err = envelopes.String(elems[0]); err != nil {
		return nil, err
	}
	if len(elems) > 1 {
		if en.Reason, err = envelopes.String(elems[1]); err != nil {
			return nil, err
		}
	}
	return
}
