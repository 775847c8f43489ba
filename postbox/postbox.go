// Package postbox is an at-least-once event delivery queue. Each event is sent
// to a set of relays and resent on an exponential backoff until every relay
// has answered it with an OK, accepted or not. Sends can be held back for a
// while, which leaves a window in which they can still be canceled.
package postbox

import (
	"errors"
	"sync"
	"time"

	"zapbox.lol/context"
	"zapbox.lol/envelopes/okenvelope"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/log"
	"zapbox.lol/normalize"
	"zapbox.lol/ws"
)

const (
	// InitialRetryAfter is how long a relay is given to answer before the first
	// resend.
	InitialRetryAfter = 10 * time.Second
	// Backoff multiplies a relay's retry interval after every attempt.
	Backoff = 1.5
	// DefaultTickInterval is how often Run looks for events due to be sent.
	DefaultTickInterval = 5 * time.Second
)

var (
	ErrNothingToCancel = errors.New("nothing to cancel")
	ErrNotDelayed      = errors.New("event was not delayed")
	ErrTooLate         = errors.New("too late to cancel, event already sent")
)

// Publisher sends an event to relays. It is satisfied by ws.Pool.
type Publisher interface {
	Publish(c context.T, ev *event.T, relays []string, skipEphemeral bool) error
	// Relays are the destinations used when a Send names none.
	Relays() []string
	IsEphemeral(url string) bool
}

// Relayer is the delivery state of an event on one relay.
type Relayer struct {
	Relay       string
	Attempts    int
	RetryAfter  time.Duration
	LastAttempt *time.Time
}

func newRelayer(relay string) *Relayer {
	return &Relayer{Relay: relay, RetryAfter: InitialRetryAfter}
}

// due reports whether the relayer should be (re)sent to at now.
func (r *Relayer) due(now time.Time) bool {
	return r.LastAttempt == nil || !now.Before(r.LastAttempt.Add(r.RetryAfter))
}

func (r *Relayer) attempt(now time.Time, limit time.Duration) {
	r.Attempts++
	r.LastAttempt = &now
	r.RetryAfter = time.Duration(float64(r.RetryAfter) * Backoff)
	if limit > 0 && r.RetryAfter > limit {
		r.RetryAfter = limit
	}
}

// FlushMode selects when an OnFlush callback fires.
type FlushMode int

const (
	// Once fires on the first relay confirmation only.
	Once FlushMode = iota
	// All fires on every relay confirmation.
	All
)

// OnFlush is a callback run as relays confirm an event.
type OnFlush struct {
	Mode FlushMode
	Fn   func(pe *PostedEvent)
}

// PostedEvent is an event waiting for confirmation from its Remaining relays.
type PostedEvent struct {
	Event         *event.T
	Remaining     []*Relayer
	SkipEphemeral bool
	// DelayedUntil is set when the event was held back at Send.
	DelayedUntil *time.Time
	OnFlush      *OnFlush
	FlushedOnce  bool
}

func (pe *PostedEvent) clone() (c *PostedEvent) {
	c = &PostedEvent{}
	*c = *pe
	c.Remaining = make([]*Relayer, len(pe.Remaining))
	for i, r := range pe.Remaining {
		rc := *r
		c.Remaining[i] = &rc
	}
	return
}

func (pe *PostedEvent) waiting(now time.Time) bool {
	return pe.DelayedUntil != nil && now.Before(*pe.DelayedUntil)
}

// Option configures a Box.
type Option interface {
	ApplyBoxOption(b *Box)
}

// WithClock replaces time.Now as the Box's source of time.
type WithClock func() time.Time

func (o WithClock) ApplyBoxOption(b *Box) { b.now = o }

// WithMaxRetryAfter caps the interval between resends to one relay. Without
// it the interval grows without bound.
type WithMaxRetryAfter time.Duration

func (o WithMaxRetryAfter) ApplyBoxOption(b *Box) { b.maxRetryAfter = time.Duration(o) }

// WithTickInterval sets how often Run calls Tick.
type WithTickInterval time.Duration

func (o WithTickInterval) ApplyBoxOption(b *Box) { b.interval = time.Duration(o) }

// Box holds the events still being delivered.
type Box struct {
	mx            sync.Mutex
	events        map[string]*PostedEvent
	pub           Publisher
	now           func() time.Time
	maxRetryAfter time.Duration
	interval      time.Duration
	ctx           context.T
}

// New creates a Box that sends through pub.
func New(c context.T, pub Publisher, opts ...Option) (b *Box) {
	b = &Box{
		events:   make(map[string]*PostedEvent),
		pub:      pub,
		now:      time.Now,
		interval: DefaultTickInterval,
		ctx:      c,
	}
	for _, o := range opts {
		o.ApplyBoxOption(b)
	}
	return
}

type send struct {
	ev            *event.T
	relays        []string
	skipEphemeral bool
}

// Send queues an event for delivery to relays, or to the publisher's default
// relays when relays is empty. With skipEphemeral set, ephemeral relays are
// left out. An event already in the box is ignored. A positive delay holds the
// event back until it has passed, otherwise it is sent right away.
func (b *Box) Send(ev *event.T, relays []string, skipEphemeral bool,
	delay time.Duration, onFlush *OnFlush) (err error) {

	if len(relays) == 0 {
		relays = b.pub.Relays()
	}
	var remaining []*Relayer
	seen := make(map[string]bool)
	for _, r := range relays {
		nr := normalize.URL(r)
		if nr == "" || seen[nr] {
			continue
		}
		if skipEphemeral && b.pub.IsEphemeral(nr) {
			continue
		}
		seen[nr] = true
		remaining = append(remaining, newRelayer(nr))
	}
	if len(remaining) == 0 {
		return errorf.E("no relays to send %s to", ev.IDString())
	}
	id := ev.IDString()
	b.mx.Lock()
	if _, ok := b.events[id]; ok {
		b.mx.Unlock()
		log.T.F("%s already in postbox", id)
		return
	}
	now := b.now()
	pe := &PostedEvent{
		Event:         ev,
		Remaining:     remaining,
		SkipEphemeral: skipEphemeral,
		OnFlush:       onFlush,
	}
	if delay > 0 {
		until := now.Add(delay)
		pe.DelayedUntil = &until
	}
	b.events[id] = pe
	pendingEvents.Inc()
	var sends []send
	if delay <= 0 {
		sends = b.due(pe, now)
	}
	b.mx.Unlock()
	b.flush(sends)
	return
}

// due picks the relays of pe that need a send at now and records the attempt.
// The caller holds the lock.
func (b *Box) due(pe *PostedEvent, now time.Time) (sends []send) {
	if pe.waiting(now) {
		return
	}
	var relays []string
	for _, r := range pe.Remaining {
		if !r.due(now) {
			continue
		}
		r.attempt(now, b.maxRetryAfter)
		relays = append(relays, r.Relay)
	}
	if len(relays) > 0 {
		sends = append(sends, send{pe.Event, relays, pe.SkipEphemeral})
	}
	return
}

func (b *Box) flush(sends []send) {
	for _, s := range sends {
		for _, relay := range s.relays {
			sendAttempts.WithLabelValues(relay).Inc()
			if err := b.pub.Publish(b.ctx, s.ev, []string{relay},
				s.skipEphemeral); err != nil {
				log.D.F("sending %s to %s: %v", s.ev.IDString(), relay, err)
			}
		}
	}
}

// Tick sends every event whose delay has passed to each relay that has not
// been tried yet or whose retry interval has elapsed.
func (b *Box) Tick() {
	b.mx.Lock()
	now := b.now()
	var sends []send
	for _, pe := range b.events {
		sends = append(sends, b.due(pe, now)...)
	}
	b.mx.Unlock()
	b.flush(sends)
}

// Cancel removes an event that is still being held back.
func (b *Box) Cancel(id []byte) (err error) {
	key := hex.Enc(id)
	b.mx.Lock()
	defer b.mx.Unlock()
	pe, ok := b.events[key]
	if !ok {
		return ErrNothingToCancel
	}
	if pe.DelayedUntil == nil {
		return ErrNotDelayed
	}
	if !b.now().Before(*pe.DelayedUntil) {
		return ErrTooLate
	}
	delete(b.events, key)
	pendingEvents.Dec()
	log.D.F("canceled %s", key)
	return
}

// Confirm records that relay answered the event with id. The relay stops
// being retried, the event's OnFlush callback is run according to its mode,
// and the event is dropped once no relays remain.
func (b *Box) Confirm(relay string, id []byte) {
	key := hex.Enc(id)
	relay = normalize.URL(relay)
	b.mx.Lock()
	pe, ok := b.events[key]
	if !ok {
		b.mx.Unlock()
		return
	}
	remaining := pe.Remaining[:0]
	for _, r := range pe.Remaining {
		if r.Relay != relay {
			remaining = append(remaining, r)
		}
	}
	pe.Remaining = remaining
	confirmations.Inc()
	var cb func(*PostedEvent)
	if pe.OnFlush != nil {
		switch pe.OnFlush.Mode {
		case Once:
			if !pe.FlushedOnce {
				cb = pe.OnFlush.Fn
			}
		case All:
			cb = pe.OnFlush.Fn
		}
	}
	pe.FlushedOnce = true
	snapshot := pe.clone()
	if len(pe.Remaining) == 0 {
		delete(b.events, key)
		pendingEvents.Dec()
		log.T.F("%s delivered to all relays", key)
	}
	b.mx.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Get returns a copy of the queued event with id.
func (b *Box) Get(id []byte) (pe *PostedEvent, ok bool) {
	b.mx.Lock()
	defer b.mx.Unlock()
	var p *PostedEvent
	if p, ok = b.events[hex.Enc(id)]; ok {
		pe = p.clone()
	}
	return
}

// Len is the number of events not yet fully delivered.
func (b *Box) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.events)
}

// HandleMessage confirms deliveries from OK envelopes and reports whether m
// was one.
func (b *Box) HandleMessage(m ws.Message) bool {
	ok, isOK := m.Envelope.(*okenvelope.T)
	if !isOK {
		return false
	}
	if !ok.OK {
		log.D.F("%s rejected %0x: %s", m.Relay, ok.EventID, ok.Reason)
	}
	b.Confirm(m.Relay, ok.EventID)
	return true
}

// Run ticks the box and consumes msgs until c is done or msgs is closed.
// Messages that are not OK envelopes are handed to rest when it is not nil.
func (b *Box) Run(c context.T, msgs <-chan ws.Message, rest func(ws.Message)) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			b.Tick()
		case m, open := <-msgs:
			if !open {
				return
			}
			if !b.HandleMessage(m) && rest != nil {
				rest(m)
			}
		}
	}
}
