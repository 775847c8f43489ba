package closeenvelope

import (
	"zapbox.lol/envelopes"
	"zapbox.lol/text"
)

const L = "CLOSE"

// T is a client request to end a subscription.
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
