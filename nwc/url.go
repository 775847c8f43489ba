// Package nwc is the client side of Nostr Wallet Connect (NIP-47): connection
// URLs, encrypted wallet requests and the responses a wallet service sends
// back over a relay.
package nwc

import (
	"bytes"
	"net/url"
	"strings"

	"zapbox.lol/errorf"
	"zapbox.lol/hex"
	"zapbox.lol/normalize"
	"zapbox.lol/p256k"
)

const (
	Scheme       = "nostr+walletconnect"
	LegacyScheme = "nostrwalletconnect"
)

// URL is a wallet connection: the service to talk to, the relay it listens on
// and the key this client signs and encrypts its requests with.
type URL struct {
	ServicePubkey []byte
	Relay         string
	Keypair       *p256k.Signer
	Lud16         string
}

// ParseURL reads both nostr+walletconnect://<pubkey>?... and the
// nostr+walletconnect:<pubkey>?... form, with either scheme spelling.
func ParseURL(s string) (u *URL, err error) {
	var p *url.URL
	if p, err = url.Parse(strings.TrimSpace(s)); err != nil {
		err = errorf.D("invalid wallet connect URL: %w", err)
		return
	}
	if p.Scheme != Scheme && p.Scheme != LegacyScheme {
		err = errorf.D("not a wallet connect URL scheme: '%s'", p.Scheme)
		return
	}
	pk := p.Host
	switch {
	case p.Opaque != "":
		pk = p.Opaque
	case strings.Trim(p.Path, "/") != "":
		pk = strings.Trim(p.Path, "/")
	}
	u = &URL{}
	if u.ServicePubkey, err = hex.DecFixed(pk, 32); err != nil {
		err = errorf.D("invalid wallet service pubkey '%s': %w", pk, err)
		return nil, err
	}
	q := p.Query()
	relay := q.Get("relay")
	if !normalize.IsRelayURL(relay) {
		return nil, errorf.D("invalid wallet relay '%s'", relay)
	}
	u.Relay = normalize.URL(relay)
	secret := q.Get("secret")
	if len(secret) != 64 {
		return nil, errorf.D("wallet secret must be 64 hex characters")
	}
	var sec []byte
	if sec, err = hex.Dec(secret); err != nil {
		return nil, errorf.D("invalid wallet secret: %w", err)
	}
	if u.Keypair, err = p256k.FromSec(sec); err != nil {
		return nil, errorf.D("invalid wallet secret: %w", err)
	}
	u.Lud16 = q.Get("lud16")
	return
}

// String renders the URL in its canonical form.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(hex.Enc(u.ServicePubkey))
	b.WriteString("?relay=")
	b.WriteString(url.QueryEscape(u.Relay))
	b.WriteString("&secret=")
	b.WriteString(hex.Enc(u.Keypair.Sec()))
	if u.Lud16 != "" {
		b.WriteString("&lud16=")
		b.WriteString(url.QueryEscape(u.Lud16))
	}
	return b.String()
}

// Pubkey is the client side public key derived from the secret.
func (u *URL) Pubkey() []byte { return u.Keypair.Pub() }

// Equal compares the service, relay and client key; the lightning address is
// informational.
func (u *URL) Equal(o *URL) bool {
	if u == nil || o == nil {
		return u == o
	}
	return bytes.Equal(u.ServicePubkey, o.ServicePubkey) && u.Relay == o.Relay &&
		bytes.Equal(u.Keypair.Pub(), o.Keypair.Pub())
}
