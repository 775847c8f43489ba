// Package ws is the relay transport: a websocket Client per relay, and a Pool
// that fans publishes and subscriptions out over them and merges what comes
// back into one Message stream.
package ws

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/envelopes"
	"zapbox.lol/envelopes/closedenvelope"
	"zapbox.lol/envelopes/closeenvelope"
	"zapbox.lol/envelopes/eoseenvelope"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/envelopes/noticeenvelope"
	"zapbox.lol/envelopes/okenvelope"
	"zapbox.lol/envelopes/reqenvelope"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/hex"
	"zapbox.lol/log"
	"zapbox.lol/normalize"
)

// Client is a connection to a single relay.
type Client struct {
	// Ctx will be canceled when connection closes
	Ctx    context.T
	cancel context.F
	url    string
	// RequestHeader e.g. for origin header
	RequestHeader   http.Header
	Connection      *Connection
	ConnectionError error
	subscriptions   *xsync.MapOf[string, *filter.T]
	okCallbacks     *xsync.MapOf[string, func(ok bool, reason string)]
	writeQueue      chan writeRequest
	handler         func(m Message)
	closeOnce       sync.Once
	// AssumeValid skips verifying signatures of events from this relay.
	AssumeValid bool
}

type writeRequest struct {
	msg    []byte
	answer chan error
}

// Option configures a Client.
type Option interface {
	IsRelayOption()
}

// WithMessageHandler receives every envelope the relay sends that is not
// dropped by validation. Without one, messages are logged at debug level.
type WithMessageHandler func(m Message)

func (WithMessageHandler) IsRelayOption() {}

var _ Option = (WithMessageHandler)(nil)

// NewClient returns a new relay client. The relay connection will be closed
// when the context is canceled.
func NewClient(c context.T, url string, opts ...Option) *Client {
	ctx, cancel := context.Cancel(c)
	r := &Client{
		url:           normalize.URL(url),
		Ctx:           ctx,
		cancel:        cancel,
		subscriptions: xsync.NewMapOf[string, *filter.T](),
		okCallbacks:   xsync.NewMapOf[string, func(bool, string)](),
		writeQueue:    make(chan writeRequest),
	}
	for _, opt := range opts {
		switch o := opt.(type) {
		case WithMessageHandler:
			r.handler = o
		}
	}
	if r.handler == nil {
		r.handler = func(m Message) {
			log.D.F("{%s} unhandled %s message", m.Relay, m.Envelope.Label())
		}
	}
	return r
}

// Connect returns a relay object connected to url. Once successfully
// connected, cancelling c has no effect. To close the connection, call
// r.Close().
func Connect(c context.T, url string, opts ...Option) (r *Client, err error) {
	r = NewClient(context.Bg(), url, opts...)
	if err = r.Connect(c); err != nil {
		r.cancel()
	}
	return
}

// URL is the normalized relay address.
func (r *Client) URL() string { return r.url }

func (r *Client) String() string { return r.url }

// IsConnected returns true if the connection to this relay seems to be active.
func (r *Client) IsConnected() bool { return r.Connection != nil && r.Ctx.Err() == nil }

// Connect tries to establish a websocket connection to r.URL. If the context
// expires before the connection is complete, an error is returned. Once
// successfully connected, context expiration has no effect: call r.Close to
// close the connection.
func (r *Client) Connect(c context.T) (err error) {
	if r.Ctx == nil || r.subscriptions == nil {
		return errorf.E("relay must be initialized with a call to NewClient()")
	}
	if len(r.url) < 1 {
		return errorf.E("invalid relay URL '%s'", r.url)
	}
	if _, ok := c.Deadline(); !ok {
		// if no timeout is set, force it to 7 seconds
		var cancel context.F
		c, cancel = context.Timeout(c, 7*time.Second)
		defer cancel()
	}
	var conn *Connection
	if conn, err = NewConnection(c, r.url, r.RequestHeader, nil); err != nil {
		return errorf.D("error opening websocket to '%s': %w", r.url, err)
	}
	r.Connection = conn
	ticker := time.NewTicker(29 * time.Second)
	go func() {
		<-r.Ctx.Done()
		ticker.Stop()
		chk.T(conn.Close())
	}()
	// queue all write operations here so we don't do mutex spaghetti
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					log.D.F("{%s} closing websocket after failed ping", r.url)
					chk.T(r.Close())
					return
				}
			case wr := <-r.writeQueue:
				if err := conn.WriteMessage(r.Ctx, wr.msg); err != nil {
					wr.answer <- err
				}
				close(wr.answer)
			case <-r.Ctx.Done():
				return
			}
		}
	}()
	go r.MessageReadLoop(conn)
	return
}

// MessageReadLoop decodes inbound messages until the connection fails.
func (r *Client) MessageReadLoop(conn *Connection) {
	var err error
	for {
		buf := new(bytes.Buffer)
		if err = conn.ReadMessage(r.Ctx, buf); err != nil {
			r.ConnectionError = err
			chk.T(r.Close())
			return
		}
		r.dispatch(buf.Bytes())
	}
}

func (r *Client) dispatch(message []byte) {
	var err error
	var t string
	if t, _, err = envelopes.Identify(message); chk.D(err) {
		log.T.F("{%s} %s", r.url, message)
		return
	}
	var env Envelope
	switch t {
	case noticeenvelope.L:
		var en *noticeenvelope.T
		if en, err = noticeenvelope.Parse(message); chk.D(err) {
			return
		}
		log.D.F("NOTICE from %s: '%s'", r.url, en.Message)
		env = en
	case eventenvelope.L:
		var en *eventenvelope.Result
		if en, err = eventenvelope.ParseResult(message); chk.D(err) {
			return
		}
		f, ok := r.subscriptions.Load(en.Subscription)
		if !ok {
			log.D.F("{%s} no subscription with id '%s'", r.url, en.Subscription)
			return
		}
		if !f.Match(en.Event) {
			log.D.F("{%s} filter does not match: %s ~ %s",
				r.url, f.Serialize(), en.Event.Serialize())
			return
		}
		if !r.AssumeValid {
			if ok, err = en.Event.Verify(); !ok {
				log.D.F("{%s} bad signature on %s; %v", r.url, en.Event.IDString(), err)
				return
			}
		}
		env = en
	case eoseenvelope.L:
		var en *eoseenvelope.T
		if en, err = eoseenvelope.Parse(message); chk.D(err) {
			return
		}
		env = en
	case closedenvelope.L:
		var en *closedenvelope.T
		if en, err = closedenvelope.Parse(message); chk.D(err) {
			return
		}
		r.subscriptions.Delete(en.Subscription)
		log.D.F("{%s} subscription %s closed: %s", r.url, en.Subscription, en.Reason)
		env = en
	case okenvelope.L:
		var en *okenvelope.T
		if en, err = okenvelope.Parse(message); chk.D(err) {
			return
		}
		if cb, exist := r.okCallbacks.Load(hex.Enc(en.EventID)); exist {
			cb(en.OK, en.Reason)
		}
		env = en
	default:
		log.T.F("{%s} ignoring %s message", r.url, t)
		return
	}
	r.handler(Message{Relay: r.url, Envelope: env})
}

// Write queues a message to be sent to the relay.
func (r *Client) Write(msg []byte) (ch chan error) {
	ch = make(chan error, 1)
	select {
	case r.writeQueue <- writeRequest{msg: msg, answer: ch}:
	case <-r.Ctx.Done():
		ch <- errorf.D("connection to %s closed", r.url)
	case <-time.After(5 * time.Second):
		ch <- errorf.D("write to %s timed out", r.url)
	}
	return
}

// Send writes an EVENT without waiting for the relay's OK, which arrives
// later as a Message.
func (r *Client) Send(ev *event.T) (err error) {
	return <-r.Write(eventenvelope.NewSubmissionWith(ev).Marshal(nil))
}

// Publish sends an EVENT to the relay and waits for an OK response. A rejected
// event is returned as an error carrying the relay's reason.
func (r *Client) Publish(c context.T, ev *event.T) (err error) {
	var cancel context.F
	if _, ok := c.Deadline(); !ok {
		// if no timeout is set, force it to 4 seconds
		c, cancel = context.Timeout(c, 4*time.Second)
	} else {
		c, cancel = context.Cancel(c)
	}
	defer cancel()
	id := ev.IDString()
	var mx sync.Mutex
	gotOk := false
	r.okCallbacks.Store(id, func(ok bool, reason string) {
		mx.Lock()
		gotOk = true
		if !ok {
			err = errorf.D("event %s rejected by %s: %s", id, r.url, reason)
		}
		mx.Unlock()
		cancel()
	})
	defer r.okCallbacks.Delete(id)
	if err = r.Send(ev); err != nil {
		return
	}
	select {
	case <-c.Done():
	case <-r.Ctx.Done():
		return errorf.D("connection to %s lost", r.url)
	}
	mx.Lock()
	defer mx.Unlock()
	if gotOk {
		return
	}
	return c.Err()
}

// Subscribe sends a REQ for a single filter. Events for it are forwarded to
// the message handler once they pass the filter and signature checks.
func (r *Client) Subscribe(id string, f *filter.T) (err error) {
	if r.Connection == nil {
		return errorf.E("must call Connect before Subscribe")
	}
	r.subscriptions.Store(id, f)
	if err = <-r.Write(reqenvelope.NewFrom(id, f).Marshal(nil)); err != nil {
		r.subscriptions.Delete(id)
	}
	return
}

// Unsubscribe sends a CLOSE for a subscription.
func (r *Client) Unsubscribe(id string) (err error) {
	if _, ok := r.subscriptions.LoadAndDelete(id); !ok {
		return
	}
	return <-r.Write(closeenvelope.NewFrom(id).Marshal(nil))
}

// Subscriptions returns a copy of the open subscriptions, for replaying them
// on a new connection.
func (r *Client) Subscriptions() (subs map[string]*filter.T) {
	subs = make(map[string]*filter.T)
	r.subscriptions.Range(func(id string, f *filter.T) bool {
		subs[id] = f
		return true
	})
	return
}

// Close ends the connection.
func (r *Client) Close() (err error) {
	r.closeOnce.Do(func() {
		r.cancel()
		if r.Connection != nil {
			err = r.Connection.Close()
		}
	})
	return
}
