package pendingzap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/nwc"
	"zapbox.lol/p256k"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
	"zapbox.lol/zap"
)

const walletURL = "nostr+walletconnect://b889ff5b1513b641e2a139f661a661364979c5beee91842f8f0ef42ab558e9d4" +
	"?relay=wss://wallet.example.com&secret=71a8c14c1407c113601079c4302dab36460f0ccd0ad506f1f2dc73b5100e4f3c"

func signer(t *testing.T) *p256k.Signer {
	s := &p256k.Signer{}
	require.NoError(t, s.Generate())
	return s
}

func pending(t *testing.T, st State, created int64) *Zap {
	user := signer(t)
	target := zap.Profile{Key: signer(t).Pub()}
	req, err := zap.MakeRequest(user, target, []string{"wss://relay.example.com"}, "",
		zap.Public, timestamp.FromUnix(created))
	require.NoError(t, err)
	return &Zap{AmountMsat: 21000, Target: target, Request: req, Type: zap.Public, State: st}
}

func walletRequest(t *testing.T) *event.T {
	ev := &event.T{
		CreatedAt: timestamp.Now(),
		Kind:      kind.WalletRequest,
		Tags:      tags.New(),
	}
	require.NoError(t, ev.Sign(signer(t)))
	return ev
}

func wallet(t *testing.T) *nwc.URL {
	u, err := nwc.ParseURL(walletURL)
	require.NoError(t, err)
	return u
}

func TestAddGetRemove(t *testing.T) {
	s := New()
	z := pending(t, External{ExtFetchingInvoice}, 1700000000)
	require.NoError(t, s.Add(z))
	require.Error(t, s.Add(z))
	got, ok := s.Get(z.ID())
	require.True(t, ok)
	require.Equal(t, uint64(21000), got.AmountMsat)
	// copies do not alias the store
	got.AmountMsat = 1
	again, _ := s.Get(z.ID())
	require.Equal(t, uint64(21000), again.AmountMsat)

	_, ok = s.Remove(z.ID())
	require.True(t, ok)
	_, ok = s.Get(z.ID())
	require.False(t, ok)
	_, ok = s.Remove(z.ID())
	require.False(t, ok)
}

func TestUpdateExternal(t *testing.T) {
	s := New()
	z := pending(t, External{ExtFetchingInvoice}, 1700000000)
	require.NoError(t, s.Add(z))
	changed, err := s.Update(z.ID(), External{ExtFetchingInvoice})
	require.NoError(t, err)
	require.False(t, changed)
	changed, err = s.Update(z.ID(), External{ExtDone})
	require.NoError(t, err)
	require.True(t, changed)
	_, err = s.Update(z.ID(), External{ExtFetchingInvoice})
	require.Error(t, err)
	_, err = s.Update(z.ID(), NWC{State: FetchingInvoice{}, URL: wallet(t)})
	require.Error(t, err)
	_, err = s.Update([]byte{1, 2}, External{ExtDone})
	require.Error(t, err)
}

func TestUpdateNWC(t *testing.T) {
	s := New()
	u := wallet(t)
	z := pending(t, NWC{State: FetchingInvoice{}, URL: u}, 1700000000)
	require.NoError(t, s.Add(z))
	_, err := s.Update(z.ID(), NWC{State: Confirmed{}, URL: u})
	require.Error(t, err, "cannot confirm before the request is queued")

	req := walletRequest(t)
	changed, err := s.Update(z.ID(), NWC{State: PostboxPending{req}, URL: u})
	require.NoError(t, err)
	require.True(t, changed)
	changed, err = s.Update(z.ID(), NWC{State: PostboxPending{req}, URL: u})
	require.NoError(t, err)
	require.False(t, changed)
	got, _ := s.Get(z.ID())
	require.False(t, IsPaid(got.State))

	changed, err = s.Update(z.ID(), NWC{State: Confirmed{}, URL: u})
	require.NoError(t, err)
	require.True(t, changed)
	got, _ = s.Get(z.ID())
	require.True(t, IsPaid(got.State))
	_, err = s.Update(z.ID(), NWC{State: Failed{}, URL: u})
	require.Error(t, err)
}

func TestCancelFetching(t *testing.T) {
	s := New()
	u := wallet(t)
	z := pending(t, NWC{State: FetchingInvoice{}, URL: u}, 1700000000)
	require.NoError(t, s.Add(z))
	changed, err := s.Update(z.ID(), NWC{State: CancelFetchingInvoice{}, URL: u})
	require.NoError(t, err)
	require.True(t, changed)
	_, err = s.Update(z.ID(), NWC{State: PostboxPending{walletRequest(t)}, URL: u})
	require.Error(t, err)
}

func TestWalletResponses(t *testing.T) {
	s := New()
	u := wallet(t)
	paid := pending(t, NWC{State: FetchingInvoice{}, URL: u}, 1700000000)
	failing := pending(t, NWC{State: FetchingInvoice{}, URL: u}, 1700000001)
	require.NoError(t, s.Add(paid))
	require.NoError(t, s.Add(failing))
	paidReq, failingReq := walletRequest(t), walletRequest(t)
	_, err := s.Update(paid.ID(), NWC{State: PostboxPending{paidReq}, URL: u})
	require.NoError(t, err)
	_, err = s.Update(failing.ID(), NWC{State: PostboxPending{failingReq}, URL: u})
	require.NoError(t, err)

	_, ok := s.HandleResponse(&nwc.Response{RequestID: make([]byte, 32)})
	require.False(t, ok)

	z, ok := s.HandleResponse(&nwc.Response{RequestID: paidReq.ID,
		Result: &nwc.PayInvoiceResult{Preimage: "00"}})
	require.True(t, ok)
	require.True(t, IsPaid(z.State))

	z, ok = s.HandleResponse(&nwc.Response{RequestID: failingReq.ID,
		Error: &nwc.WalletError{Code: nwc.Errors.QuotaExceeded}})
	require.True(t, ok)
	require.Equal(t, failing.ID(), z.ID())
	_, ok = s.Get(failing.ID())
	require.False(t, ok)
	require.Len(t, s.List(), 1)
}

func TestObserversAndListing(t *testing.T) {
	s := New()
	var seen []string
	s.Subscribe(func(id []byte) { seen = append(seen, hex.Enc(id)) })
	newer := pending(t, External{ExtFetchingInvoice}, 1700000100)
	older := pending(t, External{ExtFetchingInvoice}, 1700000000)
	require.NoError(t, s.Add(newer))
	require.NoError(t, s.Add(older))
	_, err := s.Update(newer.ID(), External{ExtFetchingInvoice})
	require.NoError(t, err)
	_, err = s.Update(newer.ID(), External{ExtDone})
	require.NoError(t, err)
	assert.Equal(t, []string{
		hex.Enc(newer.Target.ID()),
		hex.Enc(older.Target.ID()),
		hex.Enc(newer.Target.ID()),
	}, seen)

	list := s.List()
	require.Len(t, list, 2)
	require.Equal(t, older.ID(), list[0].ID())
	require.Len(t, s.ForTarget(newer.Target.ID()), 1)
	require.Empty(t, s.ForTarget([]byte("nope")))
}
