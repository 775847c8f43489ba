package zapstore

import (
	"zapbox.lol/pendingzap"
	"zapbox.lol/timestamp"
	"zapbox.lol/zap"
)

// Zapping is either a confirmed zap or one of ours still pending. Exactly one
// of the fields is set.
type Zapping struct {
	Zap     *zap.Zap
	Pending *pendingzap.Zap
}

func Confirmed(z *zap.Zap) Zapping      { return Zapping{Zap: z} }
func Pending(p *pendingzap.Zap) Zapping { return Zapping{Pending: p} }
func (z Zapping) IsPending() bool       { return z.Pending != nil }
func (z Zapping) mustBeSet() {
	if z.Zap == nil && z.Pending == nil {
		panic("empty zapping")
	}
}

// IsPaid is true for receipts and for pending zaps a wallet has confirmed.
func (z Zapping) IsPaid() bool {
	z.mustBeSet()
	if z.Zap != nil {
		return true
	}
	return pendingzap.IsPaid(z.Pending.State)
}

func (z Zapping) IsPrivate() bool {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.PrivateRequest != nil
	}
	return z.Pending.Type == zap.Private
}

// Amount in millisatoshi.
func (z Zapping) Amount() uint64 {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.AmountMsat
	}
	return z.Pending.AmountMsat
}

func (z Zapping) Target() zap.Target {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.Target
	}
	return z.Pending.Target
}

// Request is the request the zap is tracked by.
func (z Zapping) Request() *zap.Request {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.Request()
	}
	return z.Pending.Request.Inner
}

// CreatedAt is the receipt time of a zap, or the request time of a pending
// one.
func (z Zapping) CreatedAt() *timestamp.T {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.Receipt.CreatedAt
	}
	return z.Pending.Request.Inner.Ev.CreatedAt
}

func (z Zapping) IsInThread() bool { return z.Request().IsInThread() }

func (z Zapping) IsAnon() bool {
	z.mustBeSet()
	if z.Zap != nil {
		return z.Zap.IsAnon
	}
	return z.Pending.Type == zap.Anon
}

// Less orders zappings for OurZaps.
type Less func(a, b Zapping) bool

// ByRecency puts the newest first.
func ByRecency(a, b Zapping) bool { return a.CreatedAt().I64() > b.CreatedAt().I64() }

// ByAmount puts the largest first, newest first among equal amounts.
func ByAmount(a, b Zapping) bool {
	if a.Amount() != b.Amount() {
		return a.Amount() > b.Amount()
	}
	return ByRecency(a, b)
}
