package noticeenvelope

import (
	"encoding/json"

	"zapbox.lol/envelopes"
	"zapbox.lol/text"
)

const L = "NOTICE"

// T is a human readable message from a relay.
type T struct {
	Message string
}

func NewFrom(msg string) *T { return &T{Message: msg} }

func (en *T) Label() string { return L }

func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(o []byte) []byte {
		return text.AppendQuote(o, []byte(en.Message), text.NostrEscape)
	})
}

func Parse(b []byte) (en *T, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 1); err != nil {
		return
	}
	en = &T{}
	if en.Message, err = envelopes.String(elems[0]); err != nil {
		en = nil
	}
	return
}
