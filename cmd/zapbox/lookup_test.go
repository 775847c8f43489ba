package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"zapbox.lol/bech32encoding"
	"zapbox.lol/hex"
	"zapbox.lol/zap"
)

func TestParseTarget(t *testing.T) {
	var a app
	pk, id := frand.Bytes(32), frand.Bytes(32)
	npub, err := bech32encoding.BinToNpub(pk)
	require.NoError(t, err)
	note, err := bech32encoding.BinToNote(id)
	require.NoError(t, err)

	for _, s := range []string{npub, hex.Enc(pk)} {
		target, err := a.parseTarget(context.Background(), s, "")
		require.NoError(t, err)
		require.Equal(t, zap.Profile{Key: pk}, target)
	}
	target, err := a.parseTarget(context.Background(), note, npub)
	require.NoError(t, err)
	require.Equal(t, zap.Note{NoteID: id, Author: pk}, target)
	target, err = a.parseTarget(context.Background(), hex.Enc(id), hex.Enc(pk))
	require.NoError(t, err)
	require.Equal(t, zap.Note{NoteID: id, Author: pk}, target)

	nsec, err := bech32encoding.BinToNsec(pk)
	require.NoError(t, err)
	_, err = a.parseTarget(context.Background(), nsec, "")
	require.Error(t, err)
}

func TestNormalizeLNURL(t *testing.T) {
	ln, err := normalizeLNURL("alice@example.com")
	require.NoError(t, err)
	u, err := bech32encoding.DecodeLNURL(ln)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/lnurlp/alice", u)

	ln, err = normalizeLNURL("lightning:LNURL1DP68GURN8GHJ7")
	require.NoError(t, err)
	require.Equal(t, "lnurl1dp68gurn8ghj7", ln)
}
