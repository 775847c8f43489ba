package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"zapbox.lol/bolt11"
	"zapbox.lol/chk"
	"zapbox.lol/config"
	"zapbox.lol/context"
	"zapbox.lol/envelopes/eoseenvelope"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/envelopes/noticeenvelope"
	"zapbox.lol/event"
	"zapbox.lol/lnurl"
	"zapbox.lol/log"
	"zapbox.lol/lol"
	"zapbox.lol/nwc"
	"zapbox.lol/p256k"
	"zapbox.lol/pendingzap"
	"zapbox.lol/postbox"
	"zapbox.lol/signer"
	"zapbox.lol/ws"
	"zapbox.lol/zapdb"
	"zapbox.lol/zapper"
	"zapbox.lol/zapstore"
)

// lookupPrefix marks subscriptions opened for one-off lookups, whose events
// go to a waiting caller instead of the zapper.
const lookupPrefix = "lookup-"

// app is everything a command needs, wired together.
type app struct {
	cfg     *config.C
	keys    *p256k.Signer
	wallet  *nwc.URL
	pool    *ws.Pool
	box     *postbox.Box
	nwc     *nwc.Client
	lnurl   *lnurl.Client
	pending *pendingzap.Store
	zaps    *zapstore.Store
	db      *zapdb.T
	zapper  *zapper.T
	wg      sync.WaitGroup
	// lookups are the channels waiting on lookup subscriptions. A nil event
	// means the relay has nothing more.
	lookups *xsync.MapOf[string, chan *event.T]
	// responses are the wallet responses for the running command.
	responses chan *nwc.Response
}

func newApp(c context.T, cfg *config.C, needKeys bool) (a *app, err error) {
	a = &app{cfg: cfg, lookups: xsync.NewMapOf[string, chan *event.T]()}
	if cfg.Nsec != "" || needKeys {
		if a.keys, err = cfg.Keys(); err != nil {
			return
		}
	}
	if a.wallet, err = cfg.WalletURL(); err != nil {
		return
	}
	a.pool = ws.NewPool(c)
	for _, r := range cfg.Relays {
		if err = a.pool.AddRelay(r, false); chk.E(err) {
			return
		}
	}
	var opts []postbox.Option
	opts = append(opts, postbox.WithTickInterval(cfg.TickInterval))
	if cfg.MaxRetryAfter > 0 {
		opts = append(opts, postbox.WithMaxRetryAfter(cfg.MaxRetryAfter))
	}
	a.box = postbox.New(c, a.pool, opts...)
	a.nwc = nwc.NewClient(a.pool, a.box)
	a.pending = pendingzap.New()
	var ours []byte
	if a.keys != nil {
		ours = a.keys.Pub()
	}
	a.zaps = zapstore.New(ours, a.pending)
	a.db = zapdb.New(c, &a.wg, lol.GetLogLevel(cfg.DBLogLevel))
	if err = a.db.Init(cfg.DBPath); chk.E(err) {
		return
	}
	dec := bolt11.Lightning{}
	var keys signer.I
	if a.keys != nil {
		keys = a.keys
	}
	a.lnurl = lnurl.NewClient(dec, cfg.LNURLRate)
	a.zapper = zapper.New(keys, a.pending, a.zaps, a.lnurl, dec)
	a.zapper.Relays = a.pool.Relays()
	a.zapper.Box = a.box
	a.zapper.DB = a.db
	a.zapper.PayDelay = cfg.NWCDelay
	if a.wallet != nil {
		a.zapper.Wallet, a.zapper.WalletURL = a.nwc, a.wallet
	}
	a.responses = make(chan *nwc.Response, 16)
	a.zapper.OnWalletResponse = func(r *nwc.Response) {
		select {
		case a.responses <- r:
		default:
			log.D.F("dropping wallet response to %0x", r.RequestID)
		}
	}
	a.zapper.OnInvoice = func(_ pendingzap.Zap, inv *bolt11.Invoice) {
		fmt.Println("pay this invoice with your wallet:")
		printInvoice(os.Stdout, inv)
	}
	if _, err = a.zapper.Restore(); chk.E(err) {
		return
	}
	return
}

// run delivers relay messages until c is done.
func (a *app) run(c context.T) error {
	a.box.Run(c, a.pool.Messages(), a.dispatch)
	return nil
}

func (a *app) dispatch(m ws.Message) {
	switch env := m.Envelope.(type) {
	case *eventenvelope.Result:
		if strings.HasPrefix(env.Subscription, lookupPrefix) {
			if ch, ok := a.lookups.Load(env.Subscription); ok {
				select {
				case ch <- env.Event:
				default:
				}
			}
			return
		}
		a.zapper.HandleMessage(m)
	case *eoseenvelope.T:
		if ch, ok := a.lookups.Load(env.Subscription); ok {
			select {
			case ch <- nil:
			default:
			}
		}
	case *noticeenvelope.T:
		log.W.F("notice from %s: %s", m.Relay, env.Message)
	}
}

func (a *app) close() {
	a.pool.Close()
	chk.E(a.db.Close())
}
