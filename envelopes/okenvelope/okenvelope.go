package okenvelope

import (
	"encoding/json"

	"zapbox.lol/envelopes"
	"zapbox.lol/hex"
	"zapbox.lol/text"
)

const L = "OK"

// T is a relay's command result for a published event.
type T struct {
	EventID []byte
	OK      bool
	Reason  string
}

func NewFrom(eid []byte, ok bool, reason string) *T {
	return &T{EventID: eid, OK: ok, Reason: reason}
}

func (en *T) Label() string { return L }

func (en *T) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(o []byte) []byte {
		o = text.AppendQuote(o, en.EventID, hex.EncAppend)
		o = append(o, ',')
		if en.OK {
			o = append(o, "true"...)
		} else {
			o = append(o, "false"...)
		}
		o = append(o, ',')
		return text.AppendQuote(o, []byte(en.Reason), text.NostrEscape)
	})
}

// Parse decodes an OK message. The reason is optional on the wire.
func Parse(b []byte) (en *T, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 2); err != nil {
		return
	}
	en = &T{}
	var id string
	if id, err = envelopes.String(elems[0]); err != nil {
		return nil, err
	}
	if en.EventID, err = hex.DecFixed(id, 32); err != nil {
		return nil, err
	}
	if err = json.Unmarshal(elems[1], &en.OK); err != nil {
		return nil, err
	}
	if len(elems) > 2 {
		if en.Reason, err = envelopes.String(elems[2]); err != nil {
			return nil, err
		}
	}
	return
}
