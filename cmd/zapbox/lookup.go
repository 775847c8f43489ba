package main

import (
	"encoding/json"
	"strings"
	"time"

	"lukechampine.com/frand"

	"zapbox.lol/bech32encoding"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/lnurl"
	"zapbox.lol/log"
	"zapbox.lol/zap"
)

const lookupTimeout = 10 * time.Second

// latest asks every relay for events matching f and returns the newest one
// found before all relays are done or the lookup times out.
func (a *app) latest(c context.T, f *filter.T) (found *event.T, err error) {
	relays := a.pool.Relays()
	id := lookupPrefix + hex.Enc(frand.Bytes(4))
	ch := make(chan *event.T, 16*len(relays)+1)
	a.lookups.Store(id, ch)
	defer func() {
		a.lookups.Delete(id)
		for _, r := range relays {
			_ = a.pool.Unsubscribe(r, id)
		}
	}()
	var open int
	for _, r := range relays {
		if err = a.pool.Subscribe(c, r, id, f); err != nil {
			log.D.F("lookup on %s: %v", r, err)
			continue
		}
		open++
	}
	if open == 0 {
		return nil, errorf.E("no relay could be asked")
	}
	timeout := time.NewTimer(lookupTimeout)
	defer timeout.Stop()
	for open > 0 {
		select {
		case <-c.Done():
			return nil, c.Err()
		case <-timeout.C:
			open = 0
		case ev := <-ch:
			if ev == nil {
				open--
				continue
			}
			if ok, _ := ev.Verify(); !ok || !f.Match(ev) {
				continue
			}
			if found == nil || ev.CreatedAt.I64() > found.CreatedAt.I64() {
				found = ev
			}
		}
	}
	if found == nil {
		err = errorf.E("nothing found")
	}
	return
}

type profileContent struct {
	Name  string `json:"name"`
	Lud06 string `json:"lud06"`
	Lud16 string `json:"lud16"`
}

// lookupLNURL finds the lnurl in a profile's metadata.
func (a *app) lookupLNURL(c context.T, pubkey []byte) (s string, err error) {
	var ev *event.T
	if ev, err = a.latest(c, &filter.T{
		Kinds:   []*kind.T{kind.ProfileMetadata},
		Authors: [][]byte{pubkey},
		Limit:   filter.L(1),
	}); err != nil {
		return "", errorf.E("no profile for %0x: %w", pubkey, err)
	}
	var p profileContent
	if err = json.Unmarshal(ev.Content, &p); err != nil {
		return "", errorf.E("bad profile for %0x: %w", pubkey, err)
	}
	return lnurl.FromProfile(p.Lud06, p.Lud16)
}

// normalizeLNURL takes a lightning address or a bech32 lnurl.
func normalizeLNURL(s string) (string, error) {
	if strings.Contains(s, "@") {
		return lnurl.FromProfile("", s)
	}
	return strings.TrimPrefix(strings.ToLower(s), "lightning:"), nil
}

// parseTarget reads an npub, a note id or a hex key. A note needs its
// author, which is looked up when not given.
func (a *app) parseTarget(c context.T, s, author string) (t zap.Target, err error) {
	var hrp string
	var b []byte
	if len(s) == bech32encoding.HexKeyLen {
		if b, err = hex.DecFixed(s, 32); err != nil {
			return
		}
		if author == "" {
			return zap.Profile{Key: b}, nil
		}
		hrp = bech32encoding.NoteHRP
	} else if hrp, b, err = bech32encoding.Decode(s); err != nil {
		return
	}
	if len(b) != 32 {
		return nil, errorf.E("'%s' is not a 32 byte key or id", s)
	}
	switch hrp {
	case bech32encoding.PubHRP:
		return zap.Profile{Key: b}, nil
	case bech32encoding.NoteHRP:
		var pk []byte
		if author != "" {
			if pk, err = bech32encoding.KeyOrHex(author, bech32encoding.PubHRP); err != nil {
				return
			}
		} else {
			var ev *event.T
			if ev, err = a.latest(c, &filter.T{IDs: [][]byte{b}, Limit: filter.L(1)}); err != nil {
				return nil, errorf.E("note %0x not found: %w", b, err)
			}
			pk = ev.Pubkey
		}
		return zap.Note{NoteID: b, Author: pk}, nil
	}
	return nil, errorf.E("cannot zap a '%s'", hrp)
}
