package pendingzap

import (
	"bytes"
	"sort"
	"sync"

	"zapbox.lol/errorf"
	"zapbox.lol/hex"
	"zapbox.lol/log"
	"zapbox.lol/nwc"
	"zapbox.lol/zap"
)

// Zap is a zap the local user has started.
type Zap struct {
	AmountMsat uint64
	Target     zap.Target
	Request    *zap.MadeRequest
	Type       zap.Type
	State      State
}

// ID is the request id the zap is tracked under, the same id its receipt will
// carry.
func (z *Zap) ID() []byte { return z.Request.ID() }

// Store is the set of pending zaps keyed by request id.
type Store struct {
	mx        sync.Mutex
	zaps      map[string]*Zap
	observers []func(targetID []byte)
}

func New() *Store { return &Store{zaps: make(map[string]*Zap)} }

// Subscribe registers fn to be told the target of every zap that changes.
func (s *Store) Subscribe(fn func(targetID []byte)) {
	s.mx.Lock()
	s.observers = append(s.observers, fn)
	s.mx.Unlock()
}

// notify runs outside the lock.
func (s *Store) notify(targetID []byte) {
	s.mx.Lock()
	obs := append([]func([]byte){}, s.observers...)
	s.mx.Unlock()
	for _, fn := range obs {
		fn(targetID)
	}
}

// Add starts tracking z.
func (s *Store) Add(z *Zap) (err error) {
	key := hex.Enc(z.ID())
	s.mx.Lock()
	if _, ok := s.zaps[key]; ok {
		s.mx.Unlock()
		return errorf.E("zap %s is already pending", key)
	}
	c := *z
	s.zaps[key] = &c
	s.mx.Unlock()
	log.D.F("pending zap %s of %d msat in state %T", key, z.AmountMsat, z.State)
	s.notify(z.Target.ID())
	return
}

// Get returns a copy of the pending zap with request id.
func (s *Store) Get(id []byte) (z Zap, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var p *Zap
	if p, ok = s.zaps[hex.Enc(id)]; ok {
		z = *p
	}
	return
}

// Remove stops tracking a zap, because its receipt arrived or it failed.
func (s *Store) Remove(id []byte) (z Zap, ok bool) {
	key := hex.Enc(id)
	s.mx.Lock()
	var p *Zap
	if p, ok = s.zaps[key]; ok {
		z = *p
		delete(s.zaps, key)
	}
	s.mx.Unlock()
	if ok {
		log.D.F("removed pending zap %s", key)
		s.notify(z.Target.ID())
	}
	return
}

// Update moves the zap with request id to state st. Setting the state it is
// already in changes nothing and gives false.
func (s *Store) Update(id []byte, st State) (changed bool, err error) {
	key := hex.Enc(id)
	s.mx.Lock()
	z, ok := s.zaps[key]
	if !ok {
		s.mx.Unlock()
		return false, errorf.D("no pending zap %s", key)
	}
	if Equal(z.State, st) {
		s.mx.Unlock()
		return false, nil
	}
	if !allowed(z.State, st) {
		s.mx.Unlock()
		return false, errorf.E("zap %s cannot go from %#v to %#v", key, z.State, st)
	}
	z.State = st
	target := z.Target.ID()
	s.mx.Unlock()
	log.D.F("zap %s is now %T", key, st)
	s.notify(target)
	return true, nil
}

// byWalletRequest finds the zap whose wallet request has id. The caller holds
// the lock.
func (s *Store) byWalletRequest(id []byte) (key string, z *Zap) {
	for k, p := range s.zaps {
		n, ok := p.State.(NWC)
		if !ok {
			continue
		}
		if pp, ok := n.State.(PostboxPending); ok && bytes.Equal(pp.Event.ID, id) {
			return k, p
		}
	}
	return
}

// OnNWCSuccess confirms the zap paid by the request r answers.
func (s *Store) OnNWCSuccess(r *nwc.Response) (z Zap, ok bool) {
	s.mx.Lock()
	_, p := s.byWalletRequest(r.RequestID)
	if p == nil {
		s.mx.Unlock()
		log.T.F("no pending zap for wallet request %0x", r.RequestID)
		return
	}
	id := p.ID()
	url := p.State.(NWC).URL
	s.mx.Unlock()
	if _, err := s.Update(id, NWC{State: Confirmed{}, URL: url}); err != nil {
		return
	}
	return s.Get(id)
}

// OnNWCError drops the zap whose wallet request failed.
func (s *Store) OnNWCError(r *nwc.Response) (z Zap, ok bool) {
	s.mx.Lock()
	_, p := s.byWalletRequest(r.RequestID)
	s.mx.Unlock()
	if p == nil {
		return
	}
	if r.Error != nil {
		log.I.F("wallet payment failed: %s", r.Error.Human())
	}
	return s.Remove(p.ID())
}

// HandleResponse routes a wallet response to OnNWCSuccess or OnNWCError.
func (s *Store) HandleResponse(r *nwc.Response) (z Zap, ok bool) {
	if r.Error != nil {
		return s.OnNWCError(r)
	}
	return s.OnNWCSuccess(r)
}

// List returns copies of all pending zaps, oldest request first.
func (s *Store) List() (zaps []Zap) {
	s.mx.Lock()
	for _, z := range s.zaps {
		zaps = append(zaps, *z)
	}
	s.mx.Unlock()
	sort.Slice(zaps, func(i, j int) bool {
		return zaps[i].Request.Inner.Ev.CreatedAt.I64() <
			zaps[j].Request.Inner.Ev.CreatedAt.I64()
	})
	return
}

// ForTarget lists the pending zaps of one note or profile.
func (s *Store) ForTarget(targetID []byte) (zaps []Zap) {
	for _, z := range s.List() {
		if bytes.Equal(z.Target.ID(), targetID) {
			zaps = append(zaps, z)
		}
	}
	return
}
