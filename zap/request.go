package zap

import (
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/kind"
	"zapbox.lol/p256k"
	"zapbox.lol/signer"
	"zapbox.lol/tag"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

var (
	keyAnon   = []byte("anon")
	keyHidden = []byte("hidden")
)

// Type is how a zap presents its sender.
type Type int

const (
	// Public zaps are signed by the sender.
	Public Type = iota
	// Private zaps carry the sender's request encrypted to the recipient.
	Private
	// Anon zaps are signed by a throwaway key.
	Anon
	// NonZap pays the invoice without sending a zap request.
	NonZap
)

func (t Type) String() string {
	switch t {
	case Public:
		return "public"
	case Private:
		return "private"
	case Anon:
		return "anon"
	case NonZap:
		return "non_zap"
	}
	return "unknown"
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (t Type, err error) {
	for _, t = range []Type{Public, Private, Anon, NonZap} {
		if t.String() == s {
			return
		}
	}
	err = errorf.E("unknown zap type '%s'", s)
	return
}

// Request is a zap request event, kind 9734, or the kind 9733 note inside a
// private zap.
type Request struct {
	Ev           *event.T
	MarkedHidden bool
}

func NewRequest(ev *event.T) *Request {
	return &Request{Ev: ev, MarkedHidden: ev.Tags.ContainsKey(keyHidden)}
}

func (r *Request) ID() []byte { return r.Ev.ID }

// IsInThread is true for requests with a message that should show up in the
// zapped note's thread.
func (r *Request) IsInThread() bool { return len(r.Ev.Content) > 0 && !r.MarkedHidden }

// MadeRequest is a request we built. Outer is what goes to the LNURL server.
// Inner is the request we track as ours: the encrypted note for a private
// zap, otherwise the same as Outer.
type MadeRequest struct {
	Outer *Request
	Inner *Request
}

// ID is the id zaps made from this request are tracked under.
func (m *MadeRequest) ID() []byte { return m.Inner.ID() }

func requestTags(target Target, relays []string) (t *tags.T) {
	t = tags.New(target.Tags()...)
	rt := tag.NewWithCap(len(relays) + 1).Append([]byte("relays"))
	for _, r := range relays {
		rt.Append([]byte(r))
	}
	return t.AppendTags(rt)
}

// MakeRequest builds and signs a zap request of the given type.
func MakeRequest(keys signer.I, target Target, relays []string, content string,
	typ Type, now *timestamp.T) (m *MadeRequest, err error) {

	ev := &event.T{
		CreatedAt: now,
		Kind:      kind.ZapRequest,
		Tags:      requestTags(target, relays),
		Content:   []byte(content),
	}
	switch typ {
	case Public, NonZap:
		if err = ev.Sign(keys); err != nil {
			return
		}
	case Anon:
		ev.Tags.AppendTags(tag.New("anon"))
		throwaway := &p256k.Signer{}
		if err = throwaway.Generate(); err != nil {
			return
		}
		if err = ev.Sign(throwaway); err != nil {
			return
		}
	case Private:
		return makePrivate(keys, target, relays, content, now)
	default:
		panic("unknown zap type")
	}
	r := NewRequest(ev)
	return &MadeRequest{Outer: r, Inner: r}, nil
}

func makePrivate(keys signer.I, target Target, relays []string, content string,
	now *timestamp.T) (m *MadeRequest, err error) {

	inner := &event.T{
		CreatedAt: now,
		Kind:      kind.PrivateZapNote,
		Tags:      requestTags(target, relays),
		Content:   []byte(content),
	}
	if err = inner.Sign(keys); err != nil {
		return
	}
	var onetime *p256k.Signer
	if onetime, err = PrivateKeypair(keys.Sec(), target.ID(), now); err != nil {
		return
	}
	var enc string
	if enc, err = EncryptNote(onetime, target.Pubkey(), inner); err != nil {
		return
	}
	outer := &event.T{
		CreatedAt: now,
		Kind:      kind.ZapRequest,
		Tags:      requestTags(target, relays).AppendTags(tag.New("anon", enc)),
	}
	if err = outer.Sign(onetime); err != nil {
		return
	}
	return &MadeRequest{Outer: NewRequest(outer), Inner: NewRequest(inner)}, nil
}
