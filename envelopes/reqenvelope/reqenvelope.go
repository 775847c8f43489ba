package reqenvelope

import (
	"zapbox.lol/envelopes"
	"zapbox.lol/filter"
	"zapbox.lol/text"
)

const L = "REQ"

// T is a client subscription request.
type T struct {
	Subscription string
	Filters      []*filter.T
}

func NewFrom(sub string, ff ...*filter.T) *T { return &T{Subscription: sub, Filters: ff} }

func (en *T) Label() string { return L }

func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(o []byte) []byte {
		o = text.AppendQuote(o, []byte(en.Subscription), text.NostrEscape)
		for _, f := range en.Filters {
			o = append(o, ',')
			o = f.Marshal(o)
		}
		return o
	})
}
