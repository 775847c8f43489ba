package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"zapbox.lol/bech32encoding"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/hex"
	"zapbox.lol/log"
	"zapbox.lol/nwc"
	"zapbox.lol/pendingzap"
	"zapbox.lol/zap"
	"zapbox.lol/zapper"
)

// out prints amounts with digit grouping.
var out = message.NewPrinter(language.English)

const (
	receiptsSubscription = "zaps"
	walletTimeout        = 30 * time.Second
)

type zapArgs struct {
	Target  string        `arg:"positional,required" help:"npub, note id, or hex pubkey to zap"`
	Amount  uint64        `arg:"positional,required" help:"amount in sats"`
	Author  string        `arg:"-a,--author" help:"author of the note, looked up on the relays when not given"`
	Comment string        `arg:"-m,--comment" help:"message sent with the zap"`
	Type    string        `arg:"-t,--type" default:"public" help:"public, private, anon or non_zap"`
	LNURL   string        `arg:"-l,--lnurl" help:"lightning address or lnurl, looked up in the profile when not given"`
	Wait    time.Duration `arg:"-w,--wait" default:"1m" help:"how long to wait for the receipt"`
}

type listenArgs struct {
	Pubkeys []string `arg:"positional" help:"npubs or hex pubkeys whose zaps to follow, ours when none"`
	History uint     `arg:"--history" help:"also fetch this many earlier receipts"`
}

type balanceArgs struct{}

type transactionsArgs struct {
	Limit  int  `arg:"-n,--limit" default:"10" help:"number of transactions"`
	Unpaid bool `arg:"--unpaid" help:"include unpaid invoices"`
}

func (a *app) subscribeReceipts(c context.T, f *filter.T) {
	for _, r := range a.pool.Relays() {
		if err := a.pool.Subscribe(c, r, receiptsSubscription, f); err != nil {
			log.W.F("cannot watch for receipts on %s: %v", r, err)
		}
	}
}

// notifier returns a channel that is signalled whenever a zap changes.
func (a *app) notifier() <-chan struct{} {
	ch := make(chan struct{}, 1)
	fn := func([]byte) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	a.pending.Subscribe(fn)
	a.zaps.Subscribe(fn)
	return ch
}

func (a *app) zap(c context.T, args *zapArgs) (err error) {
	var target zap.Target
	if target, err = a.parseTarget(c, args.Target, args.Author); err != nil {
		return
	}
	var typ zap.Type
	if typ, err = zap.ParseType(args.Type); err != nil {
		return
	}
	var ln string
	if args.LNURL != "" {
		ln, err = normalizeLNURL(args.LNURL)
	} else {
		ln, err = a.lookupLNURL(c, target.Pubkey())
	}
	if err != nil {
		return
	}
	a.subscribeReceipts(c, zapper.ReceiptFilter(target.Pubkey()))
	changed := a.notifier()
	var pz pendingzap.Zap
	if pz, err = a.zapper.Zap(c, zapper.Intent{
		Target:     target,
		AmountMsat: args.Amount * 1000,
		Comment:    args.Comment,
		Type:       typ,
		LNURL:      ln,
	}); err != nil {
		return
	}
	id := pz.ID()
	if a.wallet != nil {
		out.Printf("paying %d sats in %v, interrupt to cancel\n", args.Amount,
			a.cfg.NWCDelay)
	}
	timeout := time.NewTimer(args.Wait)
	defer timeout.Stop()
	var paid bool
	for {
		select {
		case <-c.Done():
			if a.wallet == nil {
				return nil
			}
			if err = a.zapper.Cancel(id); err != nil {
				fmt.Println("could not cancel:", err)
				return nil
			}
			fmt.Println("zap canceled")
			return nil
		case <-timeout.C:
			fmt.Println("no receipt yet, it will be picked up by listen")
			return nil
		case r := <-a.responses:
			if r.Error != nil {
				fmt.Fprintln(os.Stderr, r.Error.Human())
			}
		case <-changed:
		}
		if cur, ok := a.pending.Get(id); ok {
			if !paid && pendingzap.IsPaid(cur.State) {
				paid = true
				fmt.Println("wallet paid, waiting for the receipt")
			}
			continue
		}
		for _, z := range a.zaps.OurZaps(target.ID()) {
			if !z.IsPending() && bytes.Equal(z.Request().ID(), id) {
				out.Printf("zapped %d sats\n", z.Amount()/1000)
				return nil
			}
		}
		return errorf.E("zap failed")
	}
}

func (a *app) listen(c context.T, args *listenArgs) (err error) {
	var pubkeys [][]byte
	for _, s := range args.Pubkeys {
		var pk []byte
		if pk, err = bech32encoding.KeyOrHex(s, bech32encoding.PubHRP); err != nil {
			return
		}
		pubkeys = append(pubkeys, pk)
	}
	if len(pubkeys) == 0 {
		if a.keys == nil {
			return errorf.E("give pubkeys to listen for or set NSEC")
		}
		pubkeys = append(pubkeys, a.keys.Pub())
	}
	for _, pk := range pubkeys {
		if _, known := a.zapper.Zapper(pk); known {
			continue
		}
		var ln string
		var zp []byte
		if ln, err = a.lookupLNURL(c, pk); err == nil {
			zp, err = a.lnurl.FetchZapper(c, pk, ln)
		}
		if err != nil {
			log.W.F("not following %0x: %v", pk, err)
			continue
		}
		a.zapper.Expect(pk, zp)
	}
	f := zapper.ReceiptFilter(pubkeys...)
	if args.History > 0 {
		f.Limit = filter.L(args.History)
	}
	a.zaps.Subscribe(func(targetID []byte) {
		out.Printf("%s: %d zaps, %d sats\n", hex.Enc(targetID),
			a.zaps.Count(targetID), a.zaps.TotalMsat(targetID)/1000)
	})
	a.subscribeReceipts(c, f)
	<-c.Done()
	return nil
}

func (a *app) awaitWallet(c context.T, request func() (*event.T, error)) (r *nwc.Response,
	err error) {

	if a.wallet == nil {
		return nil, errorf.E("NWC is not set")
	}
	var req *event.T
	if req, err = request(); err != nil {
		return
	}
	timeout := time.NewTimer(walletTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-c.Done():
			return nil, c.Err()
		case <-timeout.C:
			return nil, errorf.E("wallet did not answer")
		case r = <-a.responses:
			if !bytes.Equal(r.RequestID, req.ID) {
				continue
			}
			if r.Error != nil {
				return nil, errorf.E("%s", r.Error.Human())
			}
			return
		}
	}
}

func (a *app) balance(c context.T, _ *balanceArgs) (err error) {
	var r *nwc.Response
	if r, err = a.awaitWallet(c, func() (*event.T, error) {
		return a.nwc.RequestBalance(c, a.wallet)
	}); err != nil {
		return
	}
	if b, ok := r.Result.(*nwc.GetBalanceResult); ok {
		out.Printf("%d sats\n", uint64(b.Balance)/1000)
	}
	return
}

func (a *app) transactions(c context.T, args *transactionsArgs) (err error) {
	lt := nwc.ListTransactions{Limit: &args.Limit}
	if args.Unpaid {
		lt.Unpaid = &args.Unpaid
	}
	var r *nwc.Response
	if r, err = a.awaitWallet(c, func() (*event.T, error) {
		return a.nwc.RequestTransactions(c, a.wallet, lt)
	}); err != nil {
		return
	}
	l, ok := r.Result.(*nwc.ListTransactionsResult)
	if !ok {
		return
	}
	for _, t := range l.Transactions {
		out.Printf("%s  %-8s %10d sats  %s\n",
			time.Unix(t.CreatedAt, 0).Format(time.DateTime), t.Type,
			uint64(t.Amount)/1000, t.Description)
	}
	return
}
