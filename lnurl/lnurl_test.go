package lnurl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zapbox.lol/bech32encoding"
	"zapbox.lol/bolt11"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/p256k"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

const zapperHex = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

type fakeDecoder map[string]uint64

func (f fakeDecoder) Decode(raw string) (inv *bolt11.Invoice, err error) {
	msat, ok := f[raw]
	if !ok {
		return nil, errors.New("unknown invoice")
	}
	inv = &bolt11.Invoice{Raw: raw, Amount: bolt11.Specific(msat)}
	if msat == 0 {
		inv.Amount = bolt11.Any{}
	}
	return
}

type endpoint struct {
	*httptest.Server
	limited atomic.Int32
	queries chan url.Values
	pr      string
}

func newEndpoint(t *testing.T, commentAllowed int) (e *endpoint) {
	e = &endpoint{queries: make(chan url.Values, 8), pr: "lnbc1000n1fake"}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/lnurlp/alice", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PayRequest{
			Callback:       e.URL + "/callback",
			MinSendable:    1000,
			MaxSendable:    100000000,
			Tag:            "payRequest",
			AllowsNostr:    true,
			NostrPubkey:    zapperHex,
			CommentAllowed: commentAllowed,
		})
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		e.queries <- r.URL.Query()
		if e.limited.Add(-1) >= 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"pr": e.pr})
	})
	e.Server = httptest.NewServer(mux)
	t.Cleanup(e.Close)
	return
}

func (e *endpoint) lnurl(t *testing.T) string {
	s, err := bech32encoding.EncodeLNURL(e.URL + "/.well-known/lnurlp/alice")
	require.NoError(t, err)
	return s
}

func testClient(dec bolt11.Decoder) *Client {
	cl := NewClient(dec, 0)
	cl.AllowInternal = true
	cl.Backoff = func(int) time.Duration { return time.Millisecond }
	return cl
}

func zapRequest(t *testing.T) *event.T {
	sign := &p256k.Signer{}
	require.NoError(t, sign.Generate())
	ev := &event.T{
		Kind:      kind.ZapRequest,
		CreatedAt: timestamp.FromUnix(1700000000),
		Tags:      tags.New(),
		Content:   []byte("great post"),
	}
	require.NoError(t, ev.Sign(sign))
	return ev
}

func TestAddressToURL(t *testing.T) {
	u, err := AddressToURL("Alice@Example.com")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/lnurlp/alice", u)
	for _, bad := range []string{"alice", "@example.com", "alice@", "a@b/c"} {
		_, err = AddressToURL(bad)
		require.Error(t, err, bad)
	}
}

func TestFromProfile(t *testing.T) {
	s, err := FromProfile("", "alice@example.com")
	require.NoError(t, err)
	u, err := bech32encoding.DecodeLNURL(s)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/lnurlp/alice", u)
	s, err = FromProfile("LNURL1XYZ", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "LNURL1XYZ", s)
	_, err = FromProfile("", "")
	require.Error(t, err)
}

func TestLookupCachesAndResolvesZapper(t *testing.T) {
	e := newEndpoint(t, 0)
	cl := testClient(fakeDecoder{})
	pk := []byte("0123456789abcdef0123456789abcdef")
	zapper, err := cl.FetchZapper(context.Background(), pk, e.lnurl(t))
	require.NoError(t, err)
	require.Equal(t, zapperHex, hex.Enc(zapper))
	e.Close()
	// served from the cache once the endpoint is gone
	pr, err := cl.Lookup(context.Background(), pk, e.lnurl(t))
	require.NoError(t, err)
	require.True(t, pr.AllowsNostr)
	cl.Forget(pk)
	_, err = cl.Lookup(context.Background(), pk, e.lnurl(t))
	require.Error(t, err)
}

func TestFetchInvoiceQuery(t *testing.T) {
	e := newEndpoint(t, 5)
	cl := testClient(fakeDecoder{e.pr: 100000})
	pr, err := cl.FetchPayRequest(context.Background(), e.lnurl(t))
	require.NoError(t, err)
	zr := zapRequest(t)
	inv, err := cl.FetchInvoice(context.Background(), pr, &InvoiceRequest{
		AmountMsat: 100000,
		ZapRequest: zr,
		Comment:    "great post",
		LNURL:      e.lnurl(t),
	})
	require.NoError(t, err)
	require.Equal(t, e.pr, inv.Raw)
	q := <-e.queries
	require.Equal(t, "100000", q.Get("amount"))
	require.Equal(t, string(zr.Serialize()), q.Get("nostr"))
	require.Equal(t, e.lnurl(t), q.Get("lnurl"))
	require.Equal(t, "great", q.Get("comment"))

	// private zaps never carry a comment
	_, err = cl.FetchInvoice(context.Background(), pr, &InvoiceRequest{
		AmountMsat: 100000, ZapRequest: zr, Private: true, Comment: "secret",
	})
	require.NoError(t, err)
	q = <-e.queries
	require.False(t, q.Has("comment"))
}

func TestFetchInvoiceAmountMismatch(t *testing.T) {
	e := newEndpoint(t, 0)
	cl := testClient(fakeDecoder{e.pr: 2000})
	pr, err := cl.FetchPayRequest(context.Background(), e.lnurl(t))
	require.NoError(t, err)
	_, err = cl.FetchInvoice(context.Background(), pr, &InvoiceRequest{AmountMsat: 1000})
	require.ErrorIs(t, err, ErrAmountMismatch)

	cl.Decoder = fakeDecoder{e.pr: 0}
	_, err = cl.FetchInvoice(context.Background(), pr, &InvoiceRequest{AmountMsat: 1000})
	require.ErrorIs(t, err, ErrAmountMismatch)

	_, err = cl.FetchInvoice(context.Background(), pr, &InvoiceRequest{AmountMsat: 10})
	require.Error(t, err)
}

func TestFetchInvoiceRetriesRateLimit(t *testing.T) {
	e := newEndpoint(t, 0)
	e.limited.Store(2)
	cl := testClient(fakeDecoder{e.pr: 1000})
	pr, err := cl.FetchPayRequest(context.Background(), e.lnurl(t))
	require.NoError(t, err)
	inv, err := cl.FetchInvoiceWithRetry(context.Background(), pr,
		&InvoiceRequest{AmountMsat: 1000})
	require.NoError(t, err)
	require.Equal(t, e.pr, inv.Raw)
	require.Len(t, e.queries, 3)

	e.limited.Store(5)
	_, err = cl.FetchInvoiceWithRetry(context.Background(), pr,
		&InvoiceRequest{AmountMsat: 1000})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestFetchInvoiceWithoutRetries(t *testing.T) {
	e := newEndpoint(t, 0)
	cl := testClient(fakeDecoder{e.pr: 1000})
	cl.MaxRetries = 0
	pr, err := cl.FetchPayRequest(context.Background(), e.lnurl(t))
	require.NoError(t, err)
	inv, err := cl.FetchInvoiceWithRetry(context.Background(), pr,
		&InvoiceRequest{AmountMsat: 1000})
	require.NoError(t, err)
	require.Equal(t, e.pr, inv.Raw)
	require.Len(t, e.queries, 1)

	e.limited.Store(1)
	inv, err = cl.FetchInvoiceWithRetry(context.Background(), pr,
		&InvoiceRequest{AmountMsat: 1000})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Nil(t, inv)
	require.Len(t, e.queries, 2)
}

func TestDefaultBackoff(t *testing.T) {
	cl := NewClient(fakeDecoder{}, 0)
	require.Equal(t, 2*time.Second, cl.Backoff(1))
	require.Equal(t, 4*time.Second, cl.Backoff(2))
}

func TestRejectsInternalHosts(t *testing.T) {
	cl := NewClient(fakeDecoder{}, 0)
	for _, u := range []string{"http://localhost/x", "https://127.0.0.1/x",
		"https://10.1.2.3/x", "https://172.20.0.1/x", "ftp://example.com/x"} {
		_, err := cl.checkURL(u)
		require.Error(t, err, u)
	}
	_, err := cl.checkURL("https://172.32.0.1/x")
	require.NoError(t, err)
}
