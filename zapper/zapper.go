// Package zapper runs the whole life of a zap: it builds the request, gets an
// invoice from the recipient's LNURL endpoint, pays it through wallet connect
// or hands it to an external wallet, and routes the receipts and wallet
// responses that come back into the pending and confirmed zap stores.
package zapper

import (
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"zapbox.lol/bolt11"
	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/lnurl"
	"zapbox.lol/log"
	"zapbox.lol/nwc"
	"zapbox.lol/pendingzap"
	"zapbox.lol/postbox"
	"zapbox.lol/signer"
	"zapbox.lol/timestamp"
	"zapbox.lol/ws"
	"zapbox.lol/zap"
	"zapbox.lol/zapstore"
)

var (
	// ErrCanceled is returned by Zap when the zap was canceled while its
	// invoice was being fetched.
	ErrCanceled = errors.New("zap canceled")
	// ErrNotCancelable is returned by Cancel for zaps past their cancel window.
	ErrNotCancelable = errors.New("zap can no longer be canceled")
)

// Invoicer fetches invoices from LNURL-pay endpoints. It is satisfied by
// lnurl.Client.
type Invoicer interface {
	Lookup(c context.T, pubkey []byte, lnurl string) (*lnurl.PayRequest, error)
	FetchInvoiceWithRetry(c context.T, pr *lnurl.PayRequest,
		ir *lnurl.InvoiceRequest) (*bolt11.Invoice, error)
}

// Wallet pays invoices. It is satisfied by nwc.Client.
type Wallet interface {
	Pay(c context.T, u *nwc.URL, invoice string, delay time.Duration,
		onFlush *postbox.OnFlush) (*event.T, error)
}

// Canceler withdraws a delayed send. It is satisfied by postbox.Box.
type Canceler interface {
	Cancel(id []byte) error
}

// ReceiptSaver persists validated receipts. It is satisfied by zapdb.T.
type ReceiptSaver interface {
	SaveReceipt(ev *event.T, zapper []byte) error
	Receipts(fn func(ev *event.T, zapper []byte) bool) error
}

// T wires the zap components together. Wallet and WalletURL are both nil
// when invoices go to an external wallet.
type T struct {
	Keys      signer.I
	Relays    []string
	Pending   *pendingzap.Store
	Zaps      *zapstore.Store
	LNURL     Invoicer
	Decoder   bolt11.Decoder
	Wallet    Wallet
	WalletURL *nwc.URL
	Box       Canceler
	DB        ReceiptSaver
	PayDelay  time.Duration
	Now       func() *timestamp.T
	// OnInvoice receives invoices for an external wallet to pay.
	OnInvoice func(z pendingzap.Zap, inv *bolt11.Invoice)
	// OnWalletResponse receives every authenticated wallet response.
	OnWalletResponse func(r *nwc.Response)
	// zappers maps a recipient pubkey to the key that signs its receipts.
	zappers *xsync.MapOf[string, []byte]
}

// New creates a zapper for keys that records zaps in the given stores.
func New(keys signer.I, pending *pendingzap.Store, zaps *zapstore.Store,
	inv Invoicer, dec bolt11.Decoder) *T {

	return &T{
		Keys:     keys,
		Pending:  pending,
		Zaps:     zaps,
		LNURL:    inv,
		Decoder:  dec,
		PayDelay: nwc.DefaultPayDelay,
		Now:      timestamp.Now,
		zappers:  xsync.NewMapOf[string, []byte](),
	}
}

// Expect records that receipts for zaps to pubkey are signed by zapper.
func (z *T) Expect(pubkey, zapper []byte) { z.zappers.Store(hex.Enc(pubkey), zapper) }

// Zapper returns the receipt signer expected for zaps to pubkey.
func (z *T) Zapper(pubkey []byte) (zapper []byte, ok bool) {
	return z.zappers.Load(hex.Enc(pubkey))
}

// Intent is what the user asked for.
type Intent struct {
	Target     zap.Target
	AmountMsat uint64
	Comment    string
	Type       zap.Type
	// LNURL is the recipient's bech32 lnurl.
	LNURL string
}

func (z *T) usesWallet() bool { return z.Wallet != nil && z.WalletURL != nil }

// Zap starts a zap and returns it once its invoice has been queued for the
// wallet or handed to OnInvoice. The zap stays pending until its receipt
// arrives.
func (z *T) Zap(c context.T, in Intent) (pz pendingzap.Zap, err error) {
	var req *zap.MadeRequest
	if req, err = zap.MakeRequest(z.Keys, in.Target, z.Relays, in.Comment, in.Type,
		z.Now()); err != nil {
		return
	}
	var st pendingzap.State = pendingzap.External{State: pendingzap.ExtFetchingInvoice}
	if z.usesWallet() {
		st = pendingzap.NWC{State: pendingzap.FetchingInvoice{}, URL: z.WalletURL}
	}
	pz = pendingzap.Zap{
		AmountMsat: in.AmountMsat,
		Target:     in.Target,
		Request:    req,
		Type:       in.Type,
		State:      st,
	}
	if err = z.Pending.Add(&pz); err != nil {
		return
	}
	id := req.ID()
	fail := func(e error) (pendingzap.Zap, error) {
		z.Zaps.RemoveZap(id)
		return pz, e
	}
	var pr *lnurl.PayRequest
	if pr, err = z.LNURL.Lookup(c, in.Target.Pubkey(), in.LNURL); err != nil {
		return fail(err)
	}
	ir := &lnurl.InvoiceRequest{
		AmountMsat: in.AmountMsat,
		Private:    in.Type == zap.Private,
		Comment:    in.Comment,
		LNURL:      in.LNURL,
	}
	if in.Type != zap.NonZap {
		var zapper []byte
		if zapper, err = pr.Zapper(); err != nil {
			return fail(err)
		}
		z.Expect(in.Target.Pubkey(), zapper)
		ir.ZapRequest = req.Outer.Ev
	}
	var inv *bolt11.Invoice
	if inv, err = z.LNURL.FetchInvoiceWithRetry(c, pr, ir); err != nil {
		return fail(err)
	}
	if !z.usesWallet() {
		if _, err = z.Pending.Update(id, pendingzap.External{State: pendingzap.ExtDone}); err != nil {
			return fail(err)
		}
		pz, _ = z.Pending.Get(id)
		if z.OnInvoice != nil {
			z.OnInvoice(pz, inv)
		}
		return
	}
	if _, ok := z.Pending.Get(id); !ok {
		return pz, ErrCanceled
	} else if z.canceled(id) {
		return fail(ErrCanceled)
	}
	var walletReq *event.T
	if walletReq, err = z.Wallet.Pay(c, z.WalletURL, inv.Raw, z.PayDelay, nil); err != nil {
		return fail(err)
	}
	if _, err = z.Pending.Update(id, pendingzap.NWC{
		State: pendingzap.PostboxPending{Event: walletReq},
		URL:   z.WalletURL,
	}); err != nil {
		// a cancel that arrived while the request was being queued must still
		// keep it from being sent
		if werr := z.withdraw(walletReq.ID); werr != nil {
			err = errors.Join(err, werr)
		}
		if z.canceled(id) {
			err = errors.Join(ErrCanceled, err)
		}
		return fail(err)
	}
	pz, _ = z.Pending.Get(id)
	return
}

// canceled reports whether the user canceled zap id while its invoice was
// being fetched.
func (z *T) canceled(id []byte) bool {
	cur, ok := z.Pending.Get(id)
	if !ok {
		return false
	}
	n, ok := cur.State.(pendingzap.NWC)
	if !ok {
		return false
	}
	_, canceled := n.State.(pendingzap.CancelFetchingInvoice)
	return canceled
}

// withdraw takes a queued wallet request back out of the postbox.
func (z *T) withdraw(walletReqID []byte) (err error) {
	if z.Box == nil {
		return ErrNotCancelable
	}
	if err = z.Box.Cancel(walletReqID); err != nil {
		return errors.Join(ErrNotCancelable, err)
	}
	return
}

// Cancel withdraws a zap that is still fetching its invoice or whose wallet
// request has not left the postbox yet.
func (z *T) Cancel(requestID []byte) (err error) {
	pz, ok := z.Pending.Get(requestID)
	if !ok {
		return errorf.D("no pending zap %0x", requestID)
	}
	n, ok := pz.State.(pendingzap.NWC)
	if !ok {
		return ErrNotCancelable
	}
	switch s := n.State.(type) {
	case pendingzap.FetchingInvoice:
		_, err = z.Pending.Update(requestID,
			pendingzap.NWC{State: pendingzap.CancelFetchingInvoice{}, URL: n.URL})
		return
	case pendingzap.PostboxPending:
		if err = z.withdraw(s.Event.ID); err != nil {
			return
		}
		z.Zaps.RemoveZap(requestID)
		return
	default:
		return ErrNotCancelable
	}
}

// Handle takes an event from a relay: zap receipts go to the zap store and
// wallet responses to the pending zaps. Anything invalid is dropped.
func (z *T) Handle(ev *event.T) {
	switch {
	case ev.Kind.Equal(kind.Zap):
		z.handleReceipt(ev)
	case ev.Kind.Equal(kind.WalletResponse):
		z.handleWalletResponse(ev)
	default:
		log.T.F("ignoring kind %d event %s", ev.Kind.ToInt(), ev.IDString())
	}
}

// HandleMessage is Handle for relay messages, for use with postbox.Box.Run.
func (z *T) HandleMessage(m ws.Message) {
	if res, ok := m.Envelope.(*eventenvelope.Result); ok {
		z.Handle(res.Event)
	}
}

func (z *T) receipt(ev *event.T, zapper []byte) (zp *zap.Zap) {
	var sec []byte
	if z.Keys != nil {
		sec = z.Keys.Sec()
	}
	return zap.FromReceipt(ev, zapper, sec, z.Decoder)
}

func (z *T) handleReceipt(ev *event.T) {
	target := zap.DetermineTarget(ev)
	if target == nil {
		log.T.F("receipt %s has no target", ev.IDString())
		return
	}
	zapper, ok := z.Zapper(target.Pubkey())
	if !ok {
		log.T.F("no known zapper for %0x, dropping receipt %s", target.Pubkey(),
			ev.IDString())
		return
	}
	zp := z.receipt(ev, zapper)
	if zp == nil {
		return
	}
	if !z.Zaps.Insert(zp) {
		return
	}
	log.I.F("zap of %d msat on %0x", zp.AmountMsat, zp.Target.ID())
	if z.DB != nil {
		if err := z.DB.SaveReceipt(ev, zapper); err != nil {
			log.D.F("saving receipt %s: %v", ev.IDString(), err)
		}
	}
}

func (z *T) handleWalletResponse(ev *event.T) {
	if z.WalletURL == nil {
		return
	}
	r, err := nwc.ParseResponse(ev, z.WalletURL)
	if err != nil {
		log.T.F("dropping wallet response %s: %v", ev.IDString(), err)
		return
	}
	if r.ResultType == string(nwc.Methods.PayInvoice) {
		if r.Error != nil {
			if pz, ok := z.Pending.OnNWCError(r); ok {
				z.Zaps.RemoveZap(pz.ID())
			}
		} else {
			z.Pending.OnNWCSuccess(r)
		}
	}
	if z.OnWalletResponse != nil {
		z.OnWalletResponse(r)
	}
}

// Restore loads saved receipts into the zap store and learns their zappers.
func (z *T) Restore() (n int, err error) {
	if z.DB == nil {
		return
	}
	err = z.DB.Receipts(func(ev *event.T, zapper []byte) bool {
		zp := z.receipt(ev, zapper)
		if zp == nil {
			return true
		}
		z.Expect(zp.Target.Pubkey(), zapper)
		if z.Zaps.Insert(zp) {
			n++
		}
		return true
	})
	chk.E(err)
	log.I.F("restored %d zaps", n)
	return
}

// ReceiptFilter matches the receipts of zaps to any of pubkeys from now on.
func ReceiptFilter(pubkeys ...[]byte) *filter.T {
	return &filter.T{
		Kinds: []*kind.T{kind.Zap},
		Tags:  map[string][][]byte{"p": pubkeys},
		Limit: filter.L(0),
	}
}
