package event

import (
	"zapbox.lol/hex"
	"zapbox.lol/text"
)

// ToCanonical converts the event to the canonical encoding used to derive the
// event ID:
//
//	[0,<pubkey hex>,<created_at>,<kind>,<tags>,<content>]
func (ev *T) ToCanonical(dst []byte) (b []byte) {
	b = dst
	b = append(b, "[0,\""...)
	b = hex.EncAppend(b, ev.Pubkey)
	b = append(b, "\","...)
	b = ev.CreatedAt.Marshal(b)
	b = append(b, ',')
	b = ev.Kind.Marshal(b)
	b = append(b, ',')
	b = ev.Tags.Marshal(b)
	b = append(b, ',')
	b = text.AppendQuote(b, ev.Content, text.NostrEscape)
	b = append(b, ']')
	return
}

// GetIDBytes returns the raw SHA256 hash of the canonical form of an event.T.
func (ev *T) GetIDBytes() []byte { return Hash(ev.ToCanonical(nil)) }
