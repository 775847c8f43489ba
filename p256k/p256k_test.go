package p256k_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"zapbox.lol/hex"
	"zapbox.lol/p256k"
)

func TestSignerKnownKey(t *testing.T) {
	sec := make([]byte, 32)
	sec[31] = 1
	s, err := p256k.FromSec(sec)
	require.NoError(t, err)
	require.Equal(t,
		"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		hex.Enc(s.Pub()))
}

func TestSignerRejectsInvalidSecrets(t *testing.T) {
	s := &p256k.Signer{}
	require.Error(t, s.InitSec(make([]byte, 32)))
	require.Error(t, s.InitSec(make([]byte, 31)))
	order, _ := hex.Dec("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	require.Error(t, s.InitSec(order))
}

func TestSignVerify(t *testing.T) {
	for range 100 {
		signer := &p256k.Signer{}
		require.NoError(t, signer.Generate())
		msg := sha256.Sum256(signer.Pub())
		sig, err := signer.Sign(msg[:])
		require.NoError(t, err)
		verifier := &p256k.Signer{}
		require.NoError(t, verifier.InitPub(signer.Pub()))
		valid, err := verifier.Verify(msg[:], sig)
		require.NoError(t, err)
		require.True(t, valid)
		msg[0] ^= 1
		valid, _ = verifier.Verify(msg[:], sig)
		require.False(t, valid)
	}
}

func TestECDHIsSymmetric(t *testing.T) {
	a, b := &p256k.Signer{}, &p256k.Signer{}
	require.NoError(t, a.Generate())
	require.NoError(t, b.Generate())
	ab, err := a.ECDH(b.Pub())
	require.NoError(t, err)
	ba, err := b.ECDH(a.Pub())
	require.NoError(t, err)
	require.Len(t, ab, 32)
	require.True(t, bytes.Equal(ab, ba))
}
