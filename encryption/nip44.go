// Package encryption implements NIP-44 version 2 payload encryption:
// ChaCha20 with an HMAC-SHA256 tag, keyed from an ECDH conversation key.
package encryption

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
	"lukechampine.com/frand"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
	"zapbox.lol/signer"
)

const (
	version          byte = 2
	MinPlaintextSize      = 0x0001 // 1b msg => padded to 32b
	MaxPlaintextSize      = 0xffff // 65535 (64kb-1) => padded to 64kb
)

var salt = []byte("nip44-v2")

type Opts struct {
	err   error
	nonce []byte
}

// WithCustomNonce fixes the nonce, for test vectors only.
func WithCustomNonce(nonce []byte) func(opts *Opts) {
	return func(opts *Opts) {
		if len(nonce) != 32 {
			opts.err = errorf.E("nonce must be 32 bytes, got %d", len(nonce))
		}
		opts.nonce = nonce
	}
}

// ConversationKey derives the NIP-44 conversation key between the secret key
// held by keys and the x-only public key pub.
func ConversationKey(keys signer.I, pub []byte) (ck []byte, err error) {
	var shared []byte
	if shared, err = keys.ECDH(pub); chk.D(err) {
		return
	}
	ck = hkdf.Extract(sha256.New, shared, salt)
	return
}

// Encrypt pads, encrypts and authenticates plaintext and returns the base64
// payload.
func Encrypt(plaintext, conversationKey []byte,
	applyOptions ...func(opts *Opts)) (cipherString string, err error) {
	var o Opts
	for _, apply := range applyOptions {
		apply(&o)
	}
	if chk.E(o.err) {
		err = o.err
		return
	}
	if o.nonce == nil {
		o.nonce = frand.Bytes(32)
	}
	var enc, cc20nonce, auth []byte
	if enc, cc20nonce, auth, err = getKeys(conversationKey, o.nonce); chk.E(err) {
		return
	}
	size := len(plaintext)
	if size < MinPlaintextSize || size > MaxPlaintextSize {
		err = errorf.E("plaintext should be between 1b and 64kB, got %d", size)
		return
	}
	padded := make([]byte, 2+calcPadding(size))
	binary.BigEndian.PutUint16(padded, uint16(size))
	copy(padded[2:], plaintext)
	var cipher []byte
	if cipher, err = xor(enc, cc20nonce, padded); chk.E(err) {
		return
	}
	mac := sha256Hmac(auth, cipher, o.nonce)
	ct := make([]byte, 0, 1+32+len(cipher)+32)
	ct = append(ct, version)
	ct = append(ct, o.nonce...)
	ct = append(ct, cipher...)
	ct = append(ct, mac...)
	cipherString = base64.StdEncoding.EncodeToString(ct)
	return
}

// Decrypt authenticates and decrypts a base64 payload. A payload encrypted
// under a different conversation key fails the MAC check.
func Decrypt(b64ciphertextWrapped string, conversationKey []byte) (plaintext []byte, err error) {
	cLen := len(b64ciphertextWrapped)
	if cLen < 132 || cLen > 87472 {
		err = errorf.D("invalid payload length: %d", cLen)
		return
	}
	if b64ciphertextWrapped[0] == '#' {
		err = errorf.D("unknown version")
		return
	}
	var decoded []byte
	if decoded, err = base64.StdEncoding.DecodeString(b64ciphertextWrapped); chk.D(err) {
		return
	}
	if decoded[0] != version {
		err = errorf.D("unknown version %d", decoded[0])
		return
	}
	dLen := len(decoded)
	if dLen < 99 || dLen > 65603 {
		err = errorf.D("invalid data length: %d", dLen)
		return
	}
	nonce, ciphertext, givenMac := decoded[1:33], decoded[33:dLen-32], decoded[dLen-32:]
	var enc, cc20nonce, auth []byte
	if enc, cc20nonce, auth, err = getKeys(conversationKey, nonce); chk.D(err) {
		return
	}
	if !hmac.Equal(givenMac, sha256Hmac(auth, ciphertext, nonce)) {
		err = errorf.D("invalid hmac")
		return
	}
	var padded []byte
	if padded, err = xor(enc, cc20nonce, ciphertext); chk.D(err) {
		return
	}
	unpaddedLen := int(binary.BigEndian.Uint16(padded[0:2]))
	if unpaddedLen < MinPlaintextSize || len(padded) != 2+calcPadding(unpaddedLen) {
		err = errorf.D("invalid padding")
		return
	}
	plaintext = bytes.Clone(padded[2 : 2+unpaddedLen])
	return
}

func xor(key, nonce, message []byte) (dst []byte, err error) {
	var cipher *chacha20.Cipher
	if cipher, err = chacha20.NewUnauthenticatedCipher(key, nonce); chk.E(err) {
		return
	}
	dst = make([]byte, len(message))
	cipher.XORKeyStream(dst, message)
	return
}

func sha256Hmac(key, ciphertext, nonce []byte) (h []byte) {
	hm := hmac.New(sha256.New, key)
	hm.Write(nonce)
	hm.Write(ciphertext)
	return hm.Sum(nil)
}

func getKeys(conversationKey, nonce []byte) (enc, cc20nonce, auth []byte, err error) {
	if len(conversationKey) != 32 {
		err = errorf.E("conversation key must be 32 bytes")
		return
	}
	if len(nonce) != 32 {
		err = errorf.E("nonce must be 32 bytes")
		return
	}
	r := hkdf.Expand(sha256.New, conversationKey, nonce)
	keys := make([]byte, 76)
	if _, err = io.ReadFull(r, keys); chk.E(err) {
		return
	}
	enc, cc20nonce, auth = keys[:32], keys[32:44], keys[44:]
	return
}

func calcPadding(sLen int) (l int) {
	if sLen <= 32 {
		return 32
	}
	nextPower := 1 << int(math.Floor(math.Log2(float64(sLen-1)))+1)
	chunk := int(math.Max(32, float64(nextPower/8)))
	l = chunk * int(math.Floor(float64((sLen-1)/chunk))+1)
	return
}
