// Package zap builds NIP-57 zap requests and validates zap receipts,
// including private zaps whose real request is encrypted inside an anon tag.
package zap

import (
	"bytes"

	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/tag"
)

var (
	keyE = []byte("e")
	keyP = []byte("p")
)

// Target is what a zap pays for, a profile or a note.
type Target interface {
	// ID is the profile pubkey or the note id.
	ID() []byte
	// Pubkey is the profile pubkey or the note author.
	Pubkey() []byte
	// Tags are the e and p tags that point a request at the target.
	Tags() []*tag.T
	isTarget()
}

type Profile struct {
	Key []byte
}

type Note struct {
	NoteID []byte
	Author []byte
}

func (p Profile) ID() []byte     { return p.Key }
func (p Profile) Pubkey() []byte { return p.Key }
func (p Profile) Tags() []*tag.T { return []*tag.T{tag.New("p", hex.Enc(p.Key))} }
func (Profile) isTarget()        {}

func (n Note) ID() []byte     { return n.NoteID }
func (n Note) Pubkey() []byte { return n.Author }
func (n Note) Tags() []*tag.T {
	return []*tag.T{tag.New("e", hex.Enc(n.NoteID)), tag.New("p", hex.Enc(n.Author))}
}
func (Note) isTarget() {}

// SameTarget reports whether two targets point at the same profile or note.
func SameTarget(a, b Target) bool {
	switch at := a.(type) {
	case Profile:
		bt, ok := b.(Profile)
		return ok && bytes.Equal(at.Key, bt.Key)
	case Note:
		bt, ok := b.(Note)
		return ok && bytes.Equal(at.NoteID, bt.NoteID) && bytes.Equal(at.Author, bt.Author)
	case nil:
		return b == nil
	default:
		panic("unknown zap target")
	}
}

// firstRef returns the first tag with the key decoded as a 32 byte id. Later
// tags with the same key are never consulted.
func firstRef(ev *event.T, key []byte) (id []byte, ok bool) {
	v, found := ev.Tags.GetFirstValue(key)
	if !found {
		return
	}
	var err error
	if id, err = hex.DecFixed(string(v), 32); err != nil {
		return nil, false
	}
	return id, true
}

// DetermineTarget reads the target of a zap request: a note when it has an e
// tag, else the profile of its p tag. Without a p tag there is no target.
func DetermineTarget(ev *event.T) (t Target) {
	pk, ok := firstRef(ev, keyP)
	if !ok {
		return nil
	}
	if id, ok := firstRef(ev, keyE); ok {
		return Note{NoteID: id, Author: pk}
	}
	return Profile{Key: pk}
}
