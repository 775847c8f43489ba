// Package p256k implements the signer.I interface for BIP-340 signatures and
// ECDH on the btcec secp256k1 library.
package p256k

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"zapbox.lol/chk"
	"zapbox.lol/errorf"
	"zapbox.lol/signer"
)

const (
	SecKeyBytesLen = btcec.PrivKeyBytesLen
	PubKeyBytesLen = schnorr.PubKeyBytesLen
)

// Signer is an implementation of signer.I that uses the btcec library.
type Signer struct {
	SecretKey *btcec.PrivateKey
	PublicKey *btcec.PublicKey
	skb, pkb  []byte
}

var _ signer.I = &Signer{}

// Generate creates a new key pair.
func (s *Signer) Generate() (err error) {
	if s.SecretKey, err = btcec.NewPrivateKey(); chk.E(err) {
		return
	}
	s.skb = s.SecretKey.Serialize()
	s.PublicKey = s.SecretKey.PubKey()
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitSec initialises a Signer using raw secret key bytes. The key must be a
// valid non-zero scalar below the curve order.
func (s *Signer) InitSec(sec []byte) (err error) {
	if len(sec) != SecKeyBytesLen {
		err = errorf.E("sec key must be %d bytes, got %d", SecKeyBytesLen, len(sec))
		return
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(sec); overflow || scalar.IsZero() {
		err = errorf.E("sec key is not a valid secp256k1 scalar")
		return
	}
	s.SecretKey, s.PublicKey = btcec.PrivKeyFromBytes(sec)
	s.skb = s.SecretKey.Serialize()
	s.pkb = schnorr.SerializePubKey(s.PublicKey)
	return
}

// InitPub initializes a signature verifier Signer from raw x-only public key
// bytes.
func (s *Signer) InitPub(pub []byte) (err error) {
	if s.PublicKey, err = schnorr.ParsePubKey(pub); chk.D(err) {
		return
	}
	s.pkb = pub
	return
}

// Sec returns the raw secret key bytes.
func (s *Signer) Sec() (b []byte) { return s.skb }

// Pub returns the raw BIP-340 schnorr public key bytes.
func (s *Signer) Pub() (b []byte) { return s.pkb }

// Sign a message with the Signer. Requires an initialised secret key.
func (s *Signer) Sign(msg []byte) (sig []byte, err error) {
	if s.SecretKey == nil {
		err = errorf.E("p256k: Signer not initialized")
		return
	}
	var si *schnorr.Signature
	if si, err = schnorr.Sign(s.SecretKey, msg); chk.E(err) {
		return
	}
	sig = si.Serialize()
	return
}

// Verify a message signature, only requires the public key is initialised.
func (s *Signer) Verify(msg, sig []byte) (valid bool, err error) {
	if s.PublicKey == nil {
		err = errorf.E("p256k: Pubkey not initialized")
		return
	}
	var si *schnorr.Signature
	if si, err = schnorr.ParseSignature(sig); chk.D(err) {
		err = errorf.D("failed to parse signature of %d bytes: %w", len(sig), err)
		return
	}
	valid = si.Verify(msg, s.PublicKey)
	return
}

// Zero wipes the bytes of the secret key.
func (s *Signer) Zero() {
	if s.SecretKey != nil {
		s.SecretKey.Zero()
	}
	for i := range s.skb {
		s.skb[i] = 0
	}
}

// ECDH creates a shared secret from the secret key and a provided x-only
// public key. The result is the raw x coordinate, which NIP-44 feeds into HKDF.
func (s *Signer) ECDH(pubkeyBytes []byte) (secret []byte, err error) {
	if s.SecretKey == nil {
		err = errorf.E("p256k: Signer not initialized")
		return
	}
	if len(pubkeyBytes) != PubKeyBytesLen {
		err = errorf.E("ECDH pubkey must be %d bytes, got %d", PubKeyBytesLen, len(pubkeyBytes))
		return
	}
	var pub *btcec.PublicKey
	if pub, err = btcec.ParsePubKey(append([]byte{0x02}, pubkeyBytes...)); chk.D(err) {
		return
	}
	secret = btcec.GenerateSharedSecret(s.SecretKey, pub)
	return
}

// FromSec is a shortcut to initialise a Signer from secret key bytes.
func FromSec(sec []byte) (s *Signer, err error) {
	s = &Signer{}
	if err = s.InitSec(sec); err != nil {
		s = nil
	}
	return
}
