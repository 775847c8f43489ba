package ws

import (
	"zapbox.lol/envelopes/closedenvelope"
	"zapbox.lol/envelopes/eoseenvelope"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/envelopes/noticeenvelope"
	"zapbox.lol/envelopes/okenvelope"
)

// Envelope is any of the relay to client messages a Client forwards.
type Envelope interface {
	Label() string
}

var (
	_ Envelope = (*okenvelope.T)(nil)
	_ Envelope = (*eventenvelope.Result)(nil)
	_ Envelope = (*noticeenvelope.T)(nil)
	_ Envelope = (*eoseenvelope.T)(nil)
	_ Envelope = (*closedenvelope.T)(nil)
)

// Message is an inbound envelope tagged with the relay it arrived from.
type Message struct {
	Relay    string
	Envelope Envelope
}
