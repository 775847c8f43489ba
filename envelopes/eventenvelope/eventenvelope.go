package eventenvelope

import (
	"encoding/json"

	"zapbox.lol/envelopes"
	"zapbox.lol/event"
	"zapbox.lol/text"
)

const L = "EVENT"

// Submission is a client publishing an event to a relay.
type Submission struct {
	*event.T
}

func NewSubmissionWith(ev *event.T) *Submission { return &Submission{T: ev} }

func (en *Submission) Label() string { return L }

func (en *Submission) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, en.T.Marshal)
}

// ParseSubmission decodes a client EVENT message, as a relay sees it.
func ParseSubmission(b []byte) (en *Submission, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 1); err != nil {
		return
	}
	en = &Submission{T: event.New()}
	if err = en.T.Unmarshal(elems[0]); err != nil {
		en = nil
	}
	return
}

// Result is an event delivered by a relay for a subscription.
type Result struct {
	Subscription string
	Event        *event.T
}

func NewResultWith(sub string, ev *event.T) *Result { return &Result{Subscription: sub, Event: ev} }

func (en *Result) Label() string { return L }

func (en *Result) Marshal(dst []byte) (b []byte) {
	return envelopes.Marshal(dst, L, func(dst []byte) []byte {
		dst = text.AppendQuote(dst, []byte(en.Subscription), text.NostrEscape)
		dst = append(dst, ',')
		return en.Event.Marshal(dst)
	})
}

// ParseResult decodes a relay EVENT message.
func ParseResult(b []byte) (en *Result, err error) {
	var elems []json.RawMessage
	if elems, err = envelopes.Split(b, L, 2); err != nil {
		return
	}
	en = &Result{Event: event.New()}
	if en.Subscription, err = envelopes.String(elems[0]); err != nil {
		return nil, err
	}
	if err = en.Event.Unmarshal(elems[1]); err != nil {
		return nil, err
	}
	return
}
