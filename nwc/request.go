package nwc

import (
	"zapbox.lol/encryption"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/tag"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

// SubscriptionID is the subscription wallet responses arrive on.
const SubscriptionID = "nwc"

// Encryption names the cipher of request content in the encryption tag.
// Wallets read a request without the tag as NIP-04.
const Encryption = "nip44_v2"

// MakeRequest encrypts a method call to the wallet service and wraps it in a
// signed request event.
func MakeRequest(u *URL, r Requester, now *timestamp.T) (ev *event.T, err error) {
	var ck []byte
	if ck, err = encryption.ConversationKey(u.Keypair, u.ServicePubkey); err != nil {
		return
	}
	var content string
	if content, err = encryption.Encrypt(r.Marshal(nil), ck); err != nil {
		return
	}
	ev = &event.T{
		CreatedAt: now,
		Kind:      kind.WalletRequest,
		Tags: tags.New(
			tag.New("p", hex.Enc(u.ServicePubkey)),
			tag.New("encryption", Encryption),
		),
		Content: []byte(content),
	}
	if err = ev.Sign(u.Keypair); err != nil {
		return nil, err
	}
	return
}

// Filter matches new responses from the service addressed to this client.
// The zero limit asks only for events that arrive from now on.
func Filter(u *URL) *filter.T {
	return &filter.T{
		Kinds:   []*kind.T{kind.WalletResponse},
		Authors: [][]byte{u.ServicePubkey},
		Tags:    map[string][][]byte{"p": {u.Pubkey()}},
		Limit:   filter.L(0),
	}
}
