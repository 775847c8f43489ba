// Package event is the nostr event, with its canonical ID derivation, BIP-340
// signing and the JSON wire form.
package event

import (
	"crypto/sha256"

	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

// T is the primary datatype of nostr. This is the form of the structure that
// defines its JSON string based format.
type T struct {
	// ID is the SHA256 hash of the canonical encoding of the event in binary format
	ID []byte
	// Pubkey is the public key of the event creator in binary format
	Pubkey []byte
	// CreatedAt is the UNIX timestamp of the event according to the event
	// creator (never trust a timestamp!)
	CreatedAt *timestamp.T
	// Kind is the nostr protocol code for the type of event. See kind.T
	Kind *kind.T
	// Tags are a list of tags, which are a list of strings usually structured
	// as a 3 layer scheme indicating specific features of an event.
	Tags *tags.T
	// Content is an arbitrary string that can contain anything, but usually
	// follows the conventions of the Kind and the Tags.
	Content []byte
	// Sig is the signature on the ID hash that validates as coming from the
	// Pubkey in binary format.
	Sig []byte
}

// C is a channel of events, as delivered by a subscription.
type C chan *T

func New() (ev *T) { return &T{} }

func (ev *T) IDString() (s string)     { return hex.Enc(ev.ID) }
func (ev *T) PubkeyString() (s string) { return hex.Enc(ev.Pubkey) }

// Hash is the SHA256 used for event IDs.
func Hash(in []byte) (out []byte) {
	h := sha256.Sum256(in)
	return h[:]
}
