package nwc

import (
	"time"

	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/log"
	"zapbox.lol/postbox"
	"zapbox.lol/timestamp"
)

// DefaultPayDelay holds a payment back long enough for the user to cancel it.
const DefaultPayDelay = 5 * time.Second

// Transport reaches the wallet relay. It is satisfied by ws.Pool.
type Transport interface {
	EnsureRelay(c context.T, url string, ephemeral bool) error
	Subscribe(c context.T, relay, id string, f *filter.T) error
}

// Poster queues events for delivery. It is satisfied by postbox.Box.
type Poster interface {
	Send(ev *event.T, relays []string, skipEphemeral bool, delay time.Duration,
		onFlush *postbox.OnFlush) error
}

// Client sends wallet requests through the postbox and listens for the
// responses.
type Client struct {
	Transport Transport
	Box       Poster
	Now       func() *timestamp.T
}

func NewClient(t Transport, box Poster) *Client {
	return &Client{Transport: t, Box: box, Now: timestamp.Now}
}

// Subscribe connects to the wallet relay, which only the wallet uses, and
// opens the response subscription on it.
func (cl *Client) Subscribe(c context.T, u *URL) (err error) {
	if err = cl.Transport.EnsureRelay(c, u.Relay, true); err != nil {
		return
	}
	return cl.Transport.Subscribe(c, u.Relay, SubscriptionID, Filter(u))
}

func (cl *Client) request(c context.T, u *URL, r Requester, delay time.Duration,
	onFlush *postbox.OnFlush) (ev *event.T, err error) {

	if err = cl.Subscribe(c, u); err != nil {
		return
	}
	if ev, err = MakeRequest(u, r, cl.Now()); err != nil {
		return
	}
	if err = cl.Box.Send(ev, []string{u.Relay}, false, delay, onFlush); err != nil {
		return nil, errorf.E("queueing %s request: %w", r.RequestType(), err)
	}
	log.D.F("queued %s request %s to %s", r.RequestType(), ev.IDString(), u.Relay)
	return
}

// Pay asks the wallet to pay invoice once delay has passed. The returned
// request event id is what the wallet's response will reference.
func (cl *Client) Pay(c context.T, u *URL, invoice string, delay time.Duration,
	onFlush *postbox.OnFlush) (ev *event.T, err error) {

	return cl.request(c, u, NewPayInvoiceRequest(invoice, 0), delay, onFlush)
}

func (cl *Client) RequestBalance(c context.T, u *URL) (ev *event.T, err error) {
	return cl.request(c, u, NewGetBalanceRequest(), 0, nil)
}

// RequestTransactions lists recent transactions, the ten latest when lt does
// not say otherwise.
func (cl *Client) RequestTransactions(c context.T, u *URL,
	lt ListTransactions) (ev *event.T, err error) {

	if lt.Limit == nil {
		limit := 10
		lt.Limit = &limit
	}
	return cl.request(c, u, NewListTransactionsRequest(lt), 0, nil)
}
