package zap

import (
	"bytes"

	"zapbox.lol/bolt11"
	"zapbox.lol/event"
	"zapbox.lol/log"
)

var (
	keyBolt11      = []byte("bolt11")
	keyDescription = []byte("description")
)

// Zap is a validated zap receipt. The receipt is always authored by the
// Zapper.
type Zap struct {
	Receipt        *event.T
	Invoice        *bolt11.Invoice
	AmountMsat     uint64
	Zapper         []byte
	Target         Target
	RawRequest     *Request
	PrivateRequest *Request
	IsAnon         bool
}

// Request is the decrypted private request when there is one, else the
// request the receipt carries.
func (z *Zap) Request() *Request {
	if z.PrivateRequest != nil {
		return z.PrivateRequest
	}
	return z.RawRequest
}

// FromReceipt validates a kind 9735 receipt against the expected zapper. With
// our secret key it also opens private zaps sent to or by us. Anything
// malformed or forged gives nil.
func FromReceipt(receipt *event.T, zapper, ourSec []byte, dec bolt11.Decoder) (z *Zap) {
	id := receipt.IDString()
	if !bytes.Equal(zapper, receipt.Pubkey) {
		log.T.F("receipt %s not from the expected zapper", id)
		return
	}
	b11, ok := receipt.Tags.GetFirstValue(keyBolt11)
	if !ok {
		log.T.F("receipt %s has no bolt11", id)
		return
	}
	inv, err := dec.Decode(string(b11))
	if err != nil {
		log.T.F("receipt %s has a bad invoice: %v", id, err)
		return
	}
	msat, ok := inv.Msat()
	if !ok {
		log.T.F("receipt %s invoice has no amount", id)
		return
	}
	desc, ok := receipt.Tags.GetFirstValue(keyDescription)
	if !ok {
		log.T.F("receipt %s has no description", id)
		return
	}
	req, err := event.Parse(desc)
	if err != nil {
		log.T.F("receipt %s description is not an event: %v", id, err)
		return
	}
	if valid, _ := req.Verify(); !valid {
		log.T.F("receipt %s carries an invalid request", id)
		return
	}
	target := DetermineTarget(req)
	if target == nil {
		log.T.F("receipt %s request has no target", id)
		return
	}
	z = &Zap{
		Receipt:    receipt,
		Invoice:    inv,
		AmountMsat: msat,
		Zapper:     zapper,
		Target:     target,
		RawRequest: NewRequest(req),
	}
	if ourSec != nil {
		if note := DecryptPrivateZap(ourSec, req, target); note != nil {
			z.PrivateRequest = NewRequest(note)
		}
	}
	z.IsAnon = z.PrivateRequest == nil && IsAnonymous(req)
	return
}
