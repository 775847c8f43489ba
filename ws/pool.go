package ws

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/log"
	"zapbox.lol/normalize"
)

// Pool is a set of relays. Ephemeral relays are ones added for a single
// purpose, such as a wallet service relay, and are left out of broadcasts
// that ask to skip them.
type Pool struct {
	Ctx           context.T
	cancel        context.F
	relays        *xsync.MapOf[string, *member]
	messages      chan Message
	RequestHeader http.Header
	DialTimeout   time.Duration
}

type member struct {
	sync.Mutex
	url       string
	ephemeral bool
	client    *Client
	// subscriptions outlive a client, so a reconnect can replay them.
	subscriptions map[string]*filter.T
}

// NewPool creates a pool whose connections all end when c is canceled.
func NewPool(c context.T) (p *Pool) {
	ctx, cancel := context.Cancel(c)
	return &Pool{
		Ctx:         ctx,
		cancel:      cancel,
		relays:      xsync.NewMapOf[string, *member](),
		messages:    make(chan Message, 256),
		DialTimeout: 15 * time.Second,
	}
}

// Messages is the merged stream of envelopes from every relay in the pool.
func (p *Pool) Messages() <-chan Message { return p.messages }

func (p *Pool) deliver(m Message) {
	select {
	case p.messages <- m:
	case <-p.Ctx.Done():
	}
}

// AddRelay registers a relay without connecting to it. Adding a relay that is
// already present as ephemeral with ephemeral false makes it permanent.
func (p *Pool) AddRelay(url string, ephemeral bool) (err error) {
	nm := normalize.URL(url)
	if nm == "" {
		return errorf.E("invalid relay URL '%s'", url)
	}
	m, loaded := p.relays.LoadOrStore(nm, &member{
		url:           nm,
		ephemeral:     ephemeral,
		subscriptions: make(map[string]*filter.T),
	})
	if loaded && !ephemeral {
		m.Lock()
		m.ephemeral = false
		m.Unlock()
	}
	return
}

// IsEphemeral reports whether a relay is in the pool only as ephemeral.
func (p *Pool) IsEphemeral(url string) bool {
	m, ok := p.relays.Load(normalize.URL(url))
	if !ok {
		return false
	}
	m.Lock()
	defer m.Unlock()
	return m.ephemeral
}

// Relays lists the pool's non-ephemeral relay URLs in order, the default
// destinations of a broadcast.
func (p *Pool) Relays() (urls []string) {
	p.relays.Range(func(url string, m *member) bool {
		m.Lock()
		if !m.ephemeral {
			urls = append(urls, url)
		}
		m.Unlock()
		return true
	})
	sort.Strings(urls)
	return
}

// EnsureRelay adds the relay if needed and makes sure it is connected.
func (p *Pool) EnsureRelay(c context.T, url string, ephemeral bool) (err error) {
	if err = p.AddRelay(url, ephemeral); err != nil {
		return
	}
	m, _ := p.relays.Load(normalize.URL(url))
	_, err = p.connect(c, m)
	return
}

func (p *Pool) connect(c context.T, m *member) (cl *Client, err error) {
	m.Lock()
	defer m.Unlock()
	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}
	ctx, cancel := context.Timeout(c, p.DialTimeout)
	defer cancel()
	cl = NewClient(p.Ctx, m.url, WithMessageHandler(p.deliver))
	cl.RequestHeader = p.RequestHeader
	if err = cl.Connect(ctx); err != nil {
		return nil, errorf.D("failed to connect to %s: %w", m.url, err)
	}
	for id, f := range m.subscriptions {
		chk.D(cl.Subscribe(id, f))
	}
	m.client = cl
	log.D.F("connected to %s", m.url)
	return
}

// Publish sends an event to the given relays, or to all non-ephemeral relays
// when none are given. Relays not in the pool are ignored. With skipEphemeral,
// ephemeral relays are passed over even when listed. The relays' OK responses
// arrive on Messages.
func (p *Pool) Publish(c context.T, ev *event.T, relays []string,
	skipEphemeral bool) (err error) {

	var targets []*member
	if len(relays) == 0 {
		p.relays.Range(func(_ string, m *member) bool {
			targets = append(targets, m)
			return true
		})
		skipEphemeral = true
	} else {
		for _, url := range relays {
			m, ok := p.relays.Load(normalize.URL(url))
			if !ok {
				log.D.F("not publishing %s to %s, not in pool", ev.IDString(), url)
				continue
			}
			targets = append(targets, m)
		}
	}
	var errs []error
	for _, m := range targets {
		m.Lock()
		eph := m.ephemeral
		m.Unlock()
		if eph && skipEphemeral {
			continue
		}
		var cl *Client
		if cl, err = p.connect(c, m); err != nil {
			errs = append(errs, err)
			continue
		}
		if err = cl.Send(ev); err != nil {
			errs = append(errs, err)
			continue
		}
		log.T.F("sent %s to %s", ev.IDString(), m.url)
	}
	return errors.Join(errs...)
}

// Subscribe opens a subscription on one relay, which is replayed if the relay
// has to be reconnected.
func (p *Pool) Subscribe(c context.T, relay, id string, f *filter.T) (err error) {
	m, ok := p.relays.Load(normalize.URL(relay))
	if !ok {
		return errorf.E("relay %s is not in the pool", relay)
	}
	var cl *Client
	if cl, err = p.connect(c, m); err != nil {
		return
	}
	m.Lock()
	m.subscriptions[id] = f
	m.Unlock()
	return cl.Subscribe(id, f)
}

// Unsubscribe closes a subscription on one relay.
func (p *Pool) Unsubscribe(relay, id string) (err error) {
	m, ok := p.relays.Load(normalize.URL(relay))
	if !ok {
		return
	}
	m.Lock()
	delete(m.subscriptions, id)
	cl := m.client
	m.Unlock()
	if cl == nil || !cl.IsConnected() {
		return
	}
	return cl.Unsubscribe(id)
}

// Close disconnects every relay.
func (p *Pool) Close() {
	p.cancel()
	p.relays.Range(func(_ string, m *member) bool {
		m.Lock()
		if m.client != nil {
			chk.T(m.client.Close())
		}
		m.Unlock()
		return true
	})
}
