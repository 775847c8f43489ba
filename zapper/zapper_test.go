package zapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"zapbox.lol/bolt11"
	"zapbox.lol/encryption"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/lnurl"
	"zapbox.lol/nwc"
	"zapbox.lol/p256k"
	"zapbox.lol/pendingzap"
	"zapbox.lol/postbox"
	"zapbox.lol/tag"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
	"zapbox.lol/ws"
	"zapbox.lol/zap"
	"zapbox.lol/zapstore"
)

const invoice = "lnbc210n1zap"

type fakeDecoder map[string]bolt11.Amount

func (f fakeDecoder) Decode(raw string) (*bolt11.Invoice, error) {
	a, ok := f[raw]
	if !ok {
		return nil, errors.New("bad invoice")
	}
	return &bolt11.Invoice{Raw: raw, Amount: a}, nil
}

var decoder = fakeDecoder{invoice: bolt11.Specific(21000)}

type fakeInvoicer struct {
	pr      *lnurl.PayRequest
	err     error
	onFetch func(ir *lnurl.InvoiceRequest)
	got     *lnurl.InvoiceRequest
}

func (f *fakeInvoicer) Lookup(context.Context, []byte, string) (*lnurl.PayRequest, error) {
	return f.pr, f.err
}

func (f *fakeInvoicer) FetchInvoiceWithRetry(_ context.Context, _ *lnurl.PayRequest,
	ir *lnurl.InvoiceRequest) (*bolt11.Invoice, error) {

	f.got = ir
	if f.onFetch != nil {
		f.onFetch(ir)
	}
	return decoder.Decode(invoice)
}

type fakeWallet struct {
	paid  []string
	last  *event.T
	onPay func()
}

func (f *fakeWallet) Pay(_ context.Context, u *nwc.URL, inv string, _ time.Duration,
	_ *postbox.OnFlush) (*event.T, error) {

	f.paid = append(f.paid, inv)
	ev, err := nwc.MakeRequest(u, nwc.NewPayInvoiceRequest(inv, 0), timestamp.Now())
	f.last = ev
	if f.onPay != nil {
		f.onPay()
	}
	return ev, err
}

type fakeBox struct {
	err      error
	canceled [][]byte
}

func (f *fakeBox) Cancel(id []byte) error {
	if f.err != nil {
		return f.err
	}
	f.canceled = append(f.canceled, id)
	return nil
}

type record struct {
	ev     *event.T
	zapper []byte
}

type fakeDB struct{ records []record }

func (f *fakeDB) SaveReceipt(ev *event.T, zapper []byte) error {
	f.records = append(f.records, record{ev, zapper})
	return nil
}

func (f *fakeDB) Receipts(fn func(ev *event.T, zapper []byte) bool) error {
	for _, r := range f.records {
		if !fn(r.ev, r.zapper) {
			break
		}
	}
	return nil
}

type fixture struct {
	us, recipient, lnurlServer, service *p256k.Signer
	target                              zap.Note
	inv                                 *fakeInvoicer
	db                                  *fakeDB
	z                                   *T
}

func newSigner(t *testing.T) *p256k.Signer {
	s := &p256k.Signer{}
	require.NoError(t, s.Generate())
	return s
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{us: newSigner(t), recipient: newSigner(t), lnurlServer: newSigner(t),
		service: newSigner(t), db: &fakeDB{}}
	f.target = zap.Note{NoteID: frand.Bytes(32), Author: f.recipient.Pub()}
	f.inv = &fakeInvoicer{pr: &lnurl.PayRequest{
		Callback:    "https://ln.example.com/cb",
		AllowsNostr: true,
		NostrPubkey: hex.Enc(f.lnurlServer.Pub()),
	}}
	pending := pendingzap.New()
	f.z = New(f.us, pending, zapstore.New(f.us.Pub(), pending), f.inv, decoder)
	f.z.Relays = []string{"wss://relay.example.com"}
	f.z.DB = f.db
	return f
}

func (f *fixture) withWallet(t *testing.T) *fakeWallet {
	u, err := nwc.ParseURL("nostr+walletconnect://" + hex.Enc(f.service.Pub()) +
		"?relay=wss://wallet.example.com&secret=" + hex.Enc(frand.Bytes(32)))
	require.NoError(t, err)
	w := &fakeWallet{}
	f.z.Wallet, f.z.WalletURL = w, u
	return w
}

// receiptFor is what the LNURL server publishes once req is paid.
func (f *fixture) receiptFor(t *testing.T, req *event.T, by *p256k.Signer) *event.T {
	ev := &event.T{
		CreatedAt: timestamp.Now(),
		Kind:      kind.Zap,
		Tags: tags.New(
			tag.New("p", hex.Enc(f.recipient.Pub())),
			tag.New("e", hex.Enc(f.target.NoteID)),
			tag.New("bolt11", invoice),
			tag.New("description", string(req.Serialize())),
		),
	}
	require.NoError(t, ev.Sign(by))
	return ev
}

func (f *fixture) walletResponse(t *testing.T, req *event.T, content string) *event.T {
	ck, err := encryption.ConversationKey(f.service, f.z.WalletURL.Pubkey())
	require.NoError(t, err)
	enc, err := encryption.Encrypt([]byte(content), ck)
	require.NoError(t, err)
	ev := &event.T{
		CreatedAt: timestamp.Now(),
		Kind:      kind.WalletResponse,
		Tags:      tags.New(tag.New("e", req.IDString())),
		Content:   []byte(enc),
	}
	require.NoError(t, ev.Sign(f.service))
	return ev
}

func TestExternalZap(t *testing.T) {
	f := newFixture(t)
	var handed *bolt11.Invoice
	f.z.OnInvoice = func(_ pendingzap.Zap, inv *bolt11.Invoice) { handed = inv }

	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Comment: "gm", Type: zap.Public,
	})
	require.NoError(t, err)
	require.Equal(t, pendingzap.External{State: pendingzap.ExtDone}, pz.State)
	require.Equal(t, invoice, handed.Raw)
	require.Equal(t, pz.Request.Outer.Ev, f.inv.got.ZapRequest)
	require.Equal(t, "gm", f.inv.got.Comment)
	zapper, ok := f.z.Zapper(f.recipient.Pub())
	require.True(t, ok)
	require.Equal(t, f.lnurlServer.Pub(), zapper)

	ours := f.z.Zaps.OurZaps(f.target.NoteID)
	require.Len(t, ours, 1)
	require.True(t, ours[0].IsPending())

	// a receipt signed by someone other than the LNURL server is dropped
	f.z.Handle(f.receiptFor(t, pz.Request.Outer.Ev, f.recipient))
	require.Equal(t, 0, f.z.Zaps.Len())

	receipt := f.receiptFor(t, pz.Request.Outer.Ev, f.lnurlServer)
	f.z.HandleMessage(ws.Message{Relay: "wss://relay.example.com",
		Envelope: eventenvelope.NewResultWith("zaps", receipt)})
	require.Equal(t, 1, f.z.Zaps.Count(f.target.NoteID))
	require.Equal(t, uint64(21000), f.z.Zaps.TotalMsat(f.target.NoteID))
	ours = f.z.Zaps.OurZaps(f.target.NoteID)
	require.Len(t, ours, 1)
	require.False(t, ours[0].IsPending())
	_, stillPending := f.z.Pending.Get(pz.ID())
	require.False(t, stillPending)
	require.Len(t, f.db.records, 1)

	// the same receipt again changes nothing
	f.z.Handle(receipt)
	require.Len(t, f.db.records, 1)

	// a fresh zapper rebuilds the store from the saved receipts
	pending := pendingzap.New()
	restored := New(f.us, pending, zapstore.New(f.us.Pub(), pending), f.inv, decoder)
	restored.DB = f.db
	n, err := restored.Restore()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, restored.Zaps.Count(f.target.NoteID))
	_, ok = restored.Zapper(f.recipient.Pub())
	require.True(t, ok)
}

func TestPrivateZapReceipt(t *testing.T) {
	f := newFixture(t)
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Comment: "secret", Type: zap.Private,
	})
	require.NoError(t, err)
	require.True(t, f.inv.got.Private)
	f.z.Handle(f.receiptFor(t, pz.Request.Outer.Ev, f.lnurlServer))
	ours := f.z.Zaps.OurZaps(f.target.NoteID)
	require.Len(t, ours, 1)
	require.False(t, ours[0].IsPending())
	require.True(t, ours[0].IsPrivate())
	require.Equal(t, "secret", string(ours[0].Request().Ev.Content))
}

func TestWalletZap(t *testing.T) {
	f := newFixture(t)
	w := f.withWallet(t)
	var responses []*nwc.Response
	f.z.OnWalletResponse = func(r *nwc.Response) { responses = append(responses, r) }

	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.NoError(t, err)
	require.Equal(t, []string{invoice}, w.paid)
	n := pz.State.(pendingzap.NWC)
	require.Equal(t, w.last.ID, n.State.(pendingzap.PostboxPending).Event.ID)

	f.z.Handle(f.walletResponse(t, w.last, `{"result_type":"pay_invoice","result":{"preimage":"ab"}}`))
	require.Len(t, responses, 1)
	got, ok := f.z.Pending.Get(pz.ID())
	require.True(t, ok)
	require.True(t, pendingzap.IsPaid(got.State))

	failing, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Anon,
	})
	require.NoError(t, err)
	require.Len(t, f.z.Zaps.OurZaps(f.target.NoteID), 2)
	f.z.Handle(f.walletResponse(t, w.last,
		`{"result_type":"pay_invoice","error":{"code":"INSUFFICIENT_BALANCE","message":"no"}}`))
	_, ok = f.z.Pending.Get(failing.ID())
	require.False(t, ok)
	require.Len(t, f.z.Zaps.OurZaps(f.target.NoteID), 1)

	// responses signed by anyone but the service are ignored
	forged := f.walletResponse(t, w.last, `{"result_type":"get_balance","result":{"balance":1}}`)
	forged.Pubkey = f.us.Pub()
	f.z.Handle(forged)
	require.Len(t, responses, 2)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t)
	box := &fakeBox{}
	f.z.Box = box

	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.NoError(t, err)
	require.NoError(t, f.z.Cancel(pz.ID()))
	require.Len(t, box.canceled, 1)
	_, ok := f.z.Pending.Get(pz.ID())
	require.False(t, ok)
	require.Error(t, f.z.Cancel(pz.ID()))

	box.err = postbox.ErrTooLate
	late, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.NoError(t, err)
	err = f.z.Cancel(late.ID())
	require.ErrorIs(t, err, ErrNotCancelable)
	require.ErrorIs(t, err, postbox.ErrTooLate)
	_, ok = f.z.Pending.Get(late.ID())
	require.True(t, ok)
}

func TestCancelWhileFetchingInvoice(t *testing.T) {
	f := newFixture(t)
	w := f.withWallet(t)
	f.inv.onFetch = func(ir *lnurl.InvoiceRequest) {
		require.NoError(t, f.z.Cancel(ir.ZapRequest.ID))
	}
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.ErrorIs(t, err, ErrCanceled)
	require.Empty(t, w.paid)
	_, ok := f.z.Pending.Get(pz.ID())
	require.False(t, ok)
}

func TestCancelWhileQueueingPayment(t *testing.T) {
	f := newFixture(t)
	w := f.withWallet(t)
	box := &fakeBox{}
	f.z.Box = box
	w.onPay = func() {
		require.NoError(t, f.z.Cancel(f.inv.got.ZapRequest.ID))
	}
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.ErrorIs(t, err, ErrCanceled)
	require.Equal(t, []string{invoice}, w.paid)
	require.Equal(t, [][]byte{w.last.ID}, box.canceled,
		"the queued wallet request is withdrawn")
	_, ok := f.z.Pending.Get(pz.ID())
	require.False(t, ok)
	require.Empty(t, f.z.Zaps.OurZaps(f.target.NoteID))
}

func TestExternalNotCancelable(t *testing.T) {
	f := newFixture(t)
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.NoError(t, err)
	require.ErrorIs(t, f.z.Cancel(pz.ID()), ErrNotCancelable)
}

func TestLookupFailureDropsZap(t *testing.T) {
	f := newFixture(t)
	f.inv.err = lnurl.ErrNotZappable
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.ErrorIs(t, err, lnurl.ErrNotZappable)
	_, ok := f.z.Pending.Get(pz.ID())
	require.False(t, ok)
	require.Empty(t, f.z.Zaps.OurZaps(f.target.NoteID))
}

func TestReceiptFilter(t *testing.T) {
	f := newFixture(t)
	pz, err := f.z.Zap(context.Background(), Intent{
		Target: f.target, AmountMsat: 21000, Type: zap.Public,
	})
	require.NoError(t, err)
	fl := ReceiptFilter(f.recipient.Pub())
	require.True(t, fl.Match(f.receiptFor(t, pz.Request.Outer.Ev, f.lnurlServer)))
	require.False(t, ReceiptFilter(f.us.Pub()).Match(f.receiptFor(t, pz.Request.Outer.Ev,
		f.lnurlServer)))
}
