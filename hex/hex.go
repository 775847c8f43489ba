// Package hex is a set of aliases and helpers for hex encoding, using a SIMD
// codec for the append variants used when building wire messages.
package hex

import (
	"encoding/hex"

	"github.com/templexxx/xhex"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
)

var Enc = hex.EncodeToString
var Dec = hex.DecodeString
var DecLen = hex.DecodedLen

type InvalidByteError = hex.InvalidByteError

// EncAppend appends the hex encoding of src to dst.
func EncAppend(dst, src []byte) (b []byte) {
	l := len(dst)
	dst = append(dst, make([]byte, len(src)*2)...)
	xhex.Encode(dst[l:], src)
	return dst
}

// DecAppend appends the decoding of the hex in src to dst.
func DecAppend(dst, src []byte) (b []byte, err error) {
	if len(src)%2 != 0 {
		err = errorf.E("hex: odd length input %d", len(src))
		return
	}
	l := len(dst)
	b = append(dst, make([]byte, len(src)/2)...)
	if err = xhex.Decode(b[l:], src); chk.D(err) {
		return
	}
	return
}

// DecFixed decodes a hex string that must decode to exactly n bytes.
func DecFixed(s string, n int) (b []byte, err error) {
	if len(s) != n*2 {
		err = errorf.D("hex: want %d characters, got %d", n*2, len(s))
		return
	}
	if b, err = hex.DecodeString(s); chk.D(err) {
		return
	}
	return
}
