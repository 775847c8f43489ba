// Package zapstore aggregates validated zaps per note or profile and keeps
// the list of the local user's own zaps, pending or confirmed.
package zapstore

import (
	"bytes"
	"sort"
	"sync"

	"zapbox.lol/hex"
	"zapbox.lol/log"
	"zapbox.lol/pendingzap"
	"zapbox.lol/zap"
)

// Store holds confirmed zaps by receipt id. Pending zaps stay in the pending
// store and are merged into OurZaps when listed.
type Store struct {
	mx        sync.Mutex
	ourPubkey []byte
	zaps      map[string]*zap.Zap
	counts    map[string]int
	totals    map[string]uint64
	// ours maps a target id to our confirmed zaps on it, keyed by request id.
	ours      map[string]map[string]*zap.Zap
	pending   *pendingzap.Store
	less      Less
	observers []func(targetID []byte)
}

// New creates a store for the user with ourPubkey. pending may be nil when
// the user does not send zaps.
func New(ourPubkey []byte, pending *pendingzap.Store) *Store {
	return &Store{
		ourPubkey: ourPubkey,
		zaps:      make(map[string]*zap.Zap),
		counts:    make(map[string]int),
		totals:    make(map[string]uint64),
		ours:      make(map[string]map[string]*zap.Zap),
		pending:   pending,
		less:      ByRecency,
	}
}

// SortBy sets the order of OurZaps.
func (s *Store) SortBy(less Less) {
	s.mx.Lock()
	s.less = less
	s.mx.Unlock()
}

// Subscribe registers fn to be told the target of every inserted zap.
func (s *Store) Subscribe(fn func(targetID []byte)) {
	s.mx.Lock()
	s.observers = append(s.observers, fn)
	s.mx.Unlock()
}

func isSelfZap(z *zap.Zap) bool {
	return bytes.Equal(z.Target.Pubkey(), z.Request().Ev.Pubkey)
}

// Insert adds a zap and reports whether it was new. A receipt already in the
// store changes nothing. Our zap replaces the pending zap with its request id.
func (s *Store) Insert(z *zap.Zap) (inserted bool) {
	key := z.Receipt.IDString()
	target := hex.Enc(z.Target.ID())
	req := z.Request()
	s.mx.Lock()
	if _, ok := s.zaps[key]; ok {
		s.mx.Unlock()
		return false
	}
	// anon requests are signed by a throwaway key, so ours are recognised by
	// the pending zap they settle. The check is made under s.mx, and RemoveZap
	// drops the pending entry before it sweeps ours under s.mx.
	var wasPending bool
	if s.pending != nil {
		_, wasPending = s.pending.Get(req.ID())
	}
	s.zaps[key] = z
	if !isSelfZap(z) {
		s.counts[target]++
		s.totals[target] += z.AmountMsat
	}
	ours := wasPending || s.ourPubkey != nil && bytes.Equal(req.Ev.Pubkey, s.ourPubkey)
	if ours {
		m, ok := s.ours[target]
		if !ok {
			m = make(map[string]*zap.Zap)
			s.ours[target] = m
		}
		m[hex.Enc(req.ID())] = z
	}
	obs := append([]func([]byte){}, s.observers...)
	s.mx.Unlock()
	if ours && s.pending != nil {
		s.pending.Remove(req.ID())
	}
	zapsInserted.Inc()
	log.D.F("zap %s of %d msat on %s", key, z.AmountMsat, target)
	for _, fn := range obs {
		fn(z.Target.ID())
	}
	return true
}

// Get returns the zap with receipt id.
func (s *Store) Get(receiptID []byte) (z *zap.Zap, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	z, ok = s.zaps[hex.Enc(receiptID)]
	return
}

// Len is the number of zaps in the store.
func (s *Store) Len() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.zaps)
}

// Count is the number of zaps on a target, not counting self zaps.
func (s *Store) Count(targetID []byte) int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.counts[hex.Enc(targetID)]
}

// TotalMsat is the sum of the zaps on a target, not counting self zaps.
func (s *Store) TotalMsat(targetID []byte) uint64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.totals[hex.Enc(targetID)]
}

// OurZaps lists our zaps on a target, confirmed and pending, one per request
// id, in SortBy order.
func (s *Store) OurZaps(targetID []byte) (zz []Zapping) {
	target := hex.Enc(targetID)
	s.mx.Lock()
	confirmed := make(map[string]bool)
	for id, z := range s.ours[target] {
		confirmed[id] = true
		zz = append(zz, Confirmed(z))
	}
	less := s.less
	s.mx.Unlock()
	if s.pending != nil {
		for _, p := range s.pending.ForTarget(targetID) {
			if confirmed[hex.Enc(p.ID())] {
				continue
			}
			zz = append(zz, Pending(&p))
		}
	}
	sort.SliceStable(zz, func(i, j int) bool { return less(zz[i], zz[j]) })
	return
}

// RemoveZap forgets our zap with request id, pending or confirmed. Aggregates
// are not touched.
func (s *Store) RemoveZap(requestID []byte) {
	id := hex.Enc(requestID)
	var targets [][]byte
	// the pending entry goes first, so an Insert racing this either sees it
	// and lands in ours before the sweep below, or does not see it at all
	if s.pending != nil {
		if p, ok := s.pending.Remove(requestID); ok {
			targets = append(targets, p.Target.ID())
		}
	}
	s.mx.Lock()
	for target, m := range s.ours {
		if z, ok := m[id]; ok {
			delete(m, id)
			targets = append(targets, z.Target.ID())
		}
		if len(m) == 0 {
			delete(s.ours, target)
		}
	}
	obs := append([]func([]byte){}, s.observers...)
	s.mx.Unlock()
	for _, t := range targets {
		for _, fn := range obs {
			fn(t)
		}
	}
}
