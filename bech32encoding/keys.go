// Package bech32encoding converts nostr keys and ids to and from their NIP-19
// bech32 forms, and decodes LUD-01 bech32 LNURLs.
package bech32encoding

import (
	"bytes"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
	"zapbox.lol/hex"
)

const HexKeyLen = 64

var (
	SecHRP   = "nsec"
	PubHRP   = "npub"
	NoteHRP  = "note"
	LNURLHRP = "lnurl"
)

// ConvertForBech32 performs the bit expansion required for encoding into Bech32.
func ConvertForBech32(b8 []byte) (b5 []byte, err error) { return bech32.ConvertBits(b8, 8, 5, true) }

// ConvertFromBech32 collapses together the bit expanded 5 bit numbers encoded in bech32.
func ConvertFromBech32(b5 []byte) (b8 []byte, err error) { return bech32.ConvertBits(b5, 5, 8, false) }

// Encode renders 32 raw bytes under the given human readable part.
func Encode(hrp string, b []byte) (s string, err error) {
	var b5 []byte
	if b5, err = ConvertForBech32(b); chk.E(err) {
		return
	}
	return bech32.Encode(hrp, b5)
}

// Decode returns the human readable part and raw bytes of a bech32 string. It
// accepts strings longer than the 90 character limit, which LNURLs exceed.
func Decode(s string) (hrp string, b []byte, err error) {
	var b5 []byte
	if hrp, b5, err = bech32.DecodeNoLimit(strings.ToLower(strings.TrimSpace(s))); chk.D(err) {
		return
	}
	if b, err = ConvertFromBech32(b5); chk.D(err) {
		return
	}
	return
}

// DecodeExpecting decodes s and checks its human readable part and length.
func DecodeExpecting(s, wantHRP string, size int) (b []byte, err error) {
	var hrp string
	if hrp, b, err = Decode(s); err != nil {
		return
	}
	if hrp != wantHRP {
		err = errorf.D("wrong human readable part, got '%s' want '%s'", hrp, wantHRP)
		return
	}
	if size > 0 && len(b) != size {
		err = errorf.D("%s must decode to %d bytes, got %d", wantHRP, size, len(b))
		return
	}
	return
}

func BinToNpub(b []byte) (npub string, err error) { return Encode(PubHRP, b) }
func BinToNsec(b []byte) (nsec string, err error) { return Encode(SecHRP, b) }
func BinToNote(b []byte) (note string, err error) { return Encode(NoteHRP, b) }
func NpubToBin(s string) (b []byte, err error)    { return DecodeExpecting(s, PubHRP, 32) }
func NsecToBin(s string) (b []byte, err error)    { return DecodeExpecting(s, SecHRP, 32) }
func NoteToBin(s string) (b []byte, err error)    { return DecodeExpecting(s, NoteHRP, 32) }

// KeyOrHex accepts a 64 character hex string or a bech32 string with the given
// human readable part and returns the raw 32 bytes.
func KeyOrHex(s, hrp string) (b []byte, err error) {
	s = strings.TrimSpace(s)
	if len(s) == HexKeyLen {
		return hex.DecFixed(s, 32)
	}
	return DecodeExpecting(s, hrp, 32)
}

// DecodeLNURL decodes a LUD-01 bech32 "lnurl..." string into its URL.
func DecodeLNURL(s string) (url string, err error) {
	var b []byte
	if b, err = DecodeExpecting(strings.TrimPrefix(strings.ToLower(s), "lightning:"),
		LNURLHRP, 0); err != nil {
		return
	}
	return string(b), nil
}

// EncodeLNURL renders a URL as a LUD-01 bech32 string in upper case, which is
// the form wallets expect in QR codes.
func EncodeLNURL(url string) (s string, err error) {
	if s, err = Encode(LNURLHRP, []byte(url)); chk.E(err) {
		return
	}
	return string(bytes.ToUpper([]byte(s))), nil
}
