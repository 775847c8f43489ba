// Package kind includes a type for convenient handling of event kinds, and the
// kinds used by zaps and Nostr Wallet Connect.
package kind

import (
	"strconv"
)

// T - which will be externally referenced as kind.T is the event type in the
// nostr protocol.
type T struct {
	K uint16
}

func New[V uint16 | uint32 | int32 | int](k V) (ki *T) { return &T{uint16(k)} }

func (k *T) ToInt() int {
	if k == nil {
		return 0
	}
	return int(k.K)
}

func (k *T) ToU16() uint16 {
	if k == nil {
		return 0
	}
	return k.K
}

func (k *T) Name() string { return GetString(k) }

// Equal reports whether two kinds are the same; nil only equals nil.
func (k *T) Equal(k2 *T) bool {
	if k == nil || k2 == nil {
		return k == k2
	}
	return k.K == k2.K
}

func (k *T) Marshal(dst []byte) (b []byte) { return strconv.AppendUint(dst, uint64(k.ToU16()), 10) }

// IsEphemeral returns true if the event kind is an ephemeral event, which
// relays do not store. NWC requests and responses are ephemeral.
func (k *T) IsEphemeral() bool {
	return k != nil && k.K >= EphemeralStart.K && k.K < EphemeralEnd.K
}

// GetString returns a human readable identifier for a kind.T.
func GetString(t *T) string {
	if t == nil {
		return ""
	}
	if s, ok := Map[t.K]; ok {
		return s
	}
	return "Unknown"
}

var (
	// ProfileMetadata is an event type that stores user profile data, pet
	// names, bio, lightning address, etc.
	ProfileMetadata = &T{0}
	// TextNote is a standard short text note of plain text a la twitter
	TextNote = &T{1}
	// PrivateZapNote is the inner, encrypted zap request of a private zap.
	PrivateZapNote = &T{9733}
	// ZapRequest is a signed request for a zap receipt, embedded in the
	// LNURL callback and later in the receipt description.
	ZapRequest = &T{9734}
	// Zap is the receipt published by the LNURL provider once paid.
	Zap = &T{9735}
	// WalletInfo is the NWC service's capability advertisement.
	WalletInfo     = &T{13194}
	EphemeralStart = &T{20000}
	WalletRequest  = &T{23194}
	WalletResponse = &T{23195}
	EphemeralEnd   = &T{30000}
)

var Map = map[uint16]string{
	ProfileMetadata.K: "ProfileMetadata",
	TextNote.K:        "TextNote",
	PrivateZapNote.K:  "PrivateZapNote",
	ZapRequest.K:      "ZapRequest",
	Zap.K:             "Zap",
	WalletInfo.K:      "WalletInfo",
	WalletRequest.K:   "WalletRequest",
	WalletResponse.K:  "WalletResponse",
}
