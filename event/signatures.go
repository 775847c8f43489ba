package event

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
	"zapbox.lol/p256k"
	"zapbox.lol/signer"
)

// ErrInvalidUTF8 is returned for content that JSON cannot carry unchanged,
// so its id could never be checked by anyone receiving it.
var ErrInvalidUTF8 = errors.New("event content is not valid UTF-8")

// Sign the event using the signer.I.
//
// Note that this only populates the Pubkey, ID and Sig. The caller must
// set the CreatedAt timestamp as intended.
func (ev *T) Sign(keys signer.I) (err error) {
	if !utf8.Valid(ev.Content) {
		return ErrInvalidUTF8
	}
	ev.Pubkey = keys.Pub()
	ev.ID = ev.GetIDBytes()
	if ev.Sig, err = keys.Sign(ev.ID); chk.E(err) {
		return
	}
	return
}

// Verify an event is signed by the pubkey it contains, and that its ID is the
// hash of its canonical form.
func (ev *T) Verify() (valid bool, err error) {
	if !utf8.Valid(ev.Content) {
		return false, ErrInvalidUTF8
	}
	if !bytes.Equal(ev.GetIDBytes(), ev.ID) {
		err = errorf.D("event id %0x does not match its content", ev.ID)
		return
	}
	keys := p256k.Signer{}
	if err = keys.InitPub(ev.Pubkey); chk.D(err) {
		return
	}
	if valid, err = keys.Verify(ev.ID, ev.Sig); chk.D(err) {
		return
	}
	return
}
