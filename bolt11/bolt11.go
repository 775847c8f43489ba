// Package bolt11 decodes Lightning payment requests into the few fields zaps
// care about, using lnd's zpay32 codec.
package bolt11

import (
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"

	"zapbox.lol/errorf"
	"zapbox.lol/timestamp"
)

// Amount is either Any, for invoices that leave the amount to the payer, or
// Specific.
type Amount interface{ isAmount() }

// Any is an invoice without an amount.
type Any struct{}

// Specific is an amount in millisatoshis.
type Specific uint64

func (Any) isAmount()      {}
func (Specific) isAmount() {}

// Invoice is a decoded payment request. Exactly one of Description and
// DescriptionHash is set.
type Invoice struct {
	Raw             string
	Amount          Amount
	Description     *string
	DescriptionHash []byte
	CreatedAt       *timestamp.T
	Expiry          time.Duration
	PaymentHash     []byte
}

// Msat returns the amount of an invoice with a specific amount.
func (inv *Invoice) Msat() (msat uint64, ok bool) {
	s, ok := inv.Amount.(Specific)
	return uint64(s), ok
}

// Expired reports whether the invoice can no longer be paid at now.
func (inv *Invoice) Expired(now time.Time) bool {
	return now.After(inv.CreatedAt.Time().Add(inv.Expiry))
}

// Decoder turns a bolt11 string into an Invoice.
type Decoder interface {
	Decode(raw string) (inv *Invoice, err error)
}

// Lightning decodes invoices for any of the standard networks, chosen by the
// human readable prefix.
type Lightning struct{}

var _ Decoder = Lightning{}

// prefixes are checked in order, so longer ones sharing a stem come first.
var prefixes = []struct {
	hrp string
	net *chaincfg.Params
}{
	{"lnbcrt", &chaincfg.RegressionNetParams},
	{"lntbs", &chaincfg.SigNetParams},
	{"lntb", &chaincfg.TestNet3Params},
	{"lnsb", &chaincfg.SimNetParams},
	{"lnbc", &chaincfg.MainNetParams},
}

// Network returns the chain parameters an invoice is for.
func Network(raw string) (net *chaincfg.Params, err error) {
	s := strings.ToLower(raw)
	for _, p := range prefixes {
		if strings.HasPrefix(s, p.hrp) {
			return p.net, nil
		}
	}
	err = errorf.D("unknown invoice prefix in '%.12s'", raw)
	return
}

// Decode parses and checks the signature of an invoice. A lightning: URI
// prefix is accepted.
func (Lightning) Decode(raw string) (inv *Invoice, err error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 10 && strings.EqualFold(raw[:10], "lightning:") {
		raw = raw[10:]
	}
	var net *chaincfg.Params
	if net, err = Network(raw); err != nil {
		return
	}
	var z *zpay32.Invoice
	if z, err = zpay32.Decode(raw, net); err != nil {
		err = errorf.D("invalid invoice: %w", err)
		return
	}
	inv = &Invoice{
		Raw:         raw,
		Amount:      Any{},
		Description: z.Description,
		CreatedAt:   timestamp.FromTime(z.Timestamp),
		Expiry:      z.Expiry(),
	}
	if z.MilliSat != nil {
		inv.Amount = Specific(*z.MilliSat)
	}
	if z.DescriptionHash != nil {
		inv.DescriptionHash = z.DescriptionHash[:]
	}
	if z.PaymentHash != nil {
		inv.PaymentHash = z.PaymentHash[:]
	}
	return
}
