package bolt11

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"
)

func encode(t *testing.T, net *chaincfg.Params, opts ...func(*zpay32.Invoice)) string {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var hash [32]byte
	frand.Read(hash[:])
	inv, err := zpay32.NewInvoice(net, hash, time.Unix(1700000000, 0), opts...)
	require.NoError(t, err)
	s, err := inv.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(key, chainhash.HashB(msg), true)
		},
	})
	require.NoError(t, err)
	return s
}

func TestDecodeSpecificAmount(t *testing.T) {
	raw := encode(t, &chaincfg.MainNetParams,
		zpay32.Amount(lnwire.MilliSatoshi(21000)),
		zpay32.Description("coffee"),
		zpay32.Expiry(10*time.Minute))
	inv, err := Lightning{}.Decode("LIGHTNING:" + raw)
	require.NoError(t, err)
	msat, ok := inv.Msat()
	require.True(t, ok)
	require.Equal(t, uint64(21000), msat)
	require.NotNil(t, inv.Description)
	require.Equal(t, "coffee", *inv.Description)
	require.Nil(t, inv.DescriptionHash)
	require.Equal(t, int64(1700000000), inv.CreatedAt.I64())
	require.Equal(t, 10*time.Minute, inv.Expiry)
	require.Len(t, inv.PaymentHash, 32)
	require.False(t, inv.Expired(time.Unix(1700000000, 0)))
	require.True(t, inv.Expired(time.Unix(1700000000+601, 0)))
}

func TestDecodeAnyAmountWithHash(t *testing.T) {
	h := sha256.Sum256([]byte(`{"kind":9734}`))
	raw := encode(t, &chaincfg.TestNet3Params, zpay32.DescriptionHash(h))
	inv, err := Lightning{}.Decode(raw)
	require.NoError(t, err)
	_, ok := inv.Msat()
	require.False(t, ok)
	require.IsType(t, Any{}, inv.Amount)
	require.Equal(t, h[:], inv.DescriptionHash)
	require.Nil(t, inv.Description)
}

func TestNetworkPrefixes(t *testing.T) {
	for _, c := range []struct {
		raw string
		net *chaincfg.Params
	}{
		{"lnbcrt1xyz", &chaincfg.RegressionNetParams},
		{"lntbs1xyz", &chaincfg.SigNetParams},
		{"lntb1xyz", &chaincfg.TestNet3Params},
		{"LNBC1xyz", &chaincfg.MainNetParams},
	} {
		net, err := Network(c.raw)
		require.NoError(t, err)
		require.Equal(t, c.net.Name, net.Name, c.raw)
	}
	_, err := Network("bc1qxyz")
	require.Error(t, err)
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	raw := encode(t, &chaincfg.MainNetParams,
		zpay32.Amount(lnwire.MilliSatoshi(1000)), zpay32.Description("x"))
	b := []byte(raw)
	if b[len(b)-8] == 'q' {
		b[len(b)-8] = 'p'
	} else {
		b[len(b)-8] = 'q'
	}
	_, err := Lightning{}.Decode(string(b))
	require.Error(t, err)
}
