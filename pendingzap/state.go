// Package pendingzap tracks zaps the local user has started but that have
// no receipt yet, and moves them through their payment states.
package pendingzap

import (
	"bytes"

	"zapbox.lol/event"
	"zapbox.lol/nwc"
)

// State is where a pending zap is in its payment. It is either External or
// NWC.
type State interface {
	isState()
}

// ExtState is the progress of a zap paid by an external wallet.
type ExtState int

const (
	ExtFetchingInvoice ExtState = iota
	// ExtDone means the invoice was handed to the wallet. Whether it was paid
	// is only known when a receipt arrives.
	ExtDone
)

// External is the state of a zap paid outside this program.
type External struct {
	State ExtState
}

// NWCState is the progress of a zap paid through wallet connect. It is one
// of FetchingInvoice, CancelFetchingInvoice, PostboxPending, Confirmed and
// Failed.
type NWCState interface {
	isNWCState()
}

type (
	FetchingInvoice       struct{}
	CancelFetchingInvoice struct{}
	// PostboxPending holds the wallet request waiting to be sent or answered.
	PostboxPending struct{ Event *event.T }
	Confirmed      struct{}
	Failed         struct{}
)

func (FetchingInvoice) isNWCState()       {}
func (CancelFetchingInvoice) isNWCState() {}
func (PostboxPending) isNWCState()        {}
func (Confirmed) isNWCState()             {}
func (Failed) isNWCState()                {}

// NWC is the state of a zap paid by the wallet at URL.
type NWC struct {
	State NWCState
	URL   *nwc.URL
}

func (External) isState() {}
func (NWC) isState()      {}

func equalNWCState(a, b NWCState) bool {
	switch av := a.(type) {
	case FetchingInvoice, CancelFetchingInvoice, Confirmed, Failed:
		return a == b
	case PostboxPending:
		bv, ok := b.(PostboxPending)
		return ok && bytes.Equal(av.Event.ID, bv.Event.ID)
	default:
		panic("unknown nwc state")
	}
}

// Equal compares two states, including the wallet of NWC states.
func Equal(a, b State) bool {
	switch av := a.(type) {
	case External:
		bv, ok := b.(External)
		return ok && av == bv
	case NWC:
		bv, ok := b.(NWC)
		return ok && av.URL.Equal(bv.URL) && equalNWCState(av.State, bv.State)
	default:
		panic("unknown pending zap state")
	}
}

// allowed reports whether a zap may move from one state to another.
func allowed(from, to State) bool {
	switch fv := from.(type) {
	case External:
		tv, ok := to.(External)
		return ok && fv.State == ExtFetchingInvoice && tv.State == ExtDone
	case NWC:
		tv, ok := to.(NWC)
		if !ok || !fv.URL.Equal(tv.URL) {
			return false
		}
		switch fv.State.(type) {
		case FetchingInvoice:
			switch tv.State.(type) {
			case CancelFetchingInvoice, PostboxPending, Failed:
				return true
			}
		case PostboxPending:
			switch tv.State.(type) {
			case Confirmed, Failed:
				return true
			}
		case CancelFetchingInvoice, Confirmed, Failed:
		default:
			panic("unknown nwc state")
		}
		return false
	default:
		panic("unknown pending zap state")
	}
}

// IsPaid is true once a wallet has confirmed the payment. External payments
// are never known to be paid before their receipt.
func IsPaid(s State) bool {
	switch sv := s.(type) {
	case External:
		return false
	case NWC:
		_, ok := sv.State.(Confirmed)
		return ok
	default:
		panic("unknown pending zap state")
	}
}
