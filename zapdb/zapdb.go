// Package zapdb is a badger database of validated zap receipts, so the zap
// store can be rebuilt without asking relays again after a restart.
package zapdb

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/log"
)

// ErrDupReceipt is returned when saving a receipt that is already stored.
var ErrDupReceipt = errors.New("duplicate: receipt already stored")

const (
	// Version of the key layout.
	Version = 1
	// BlockSize is the badger table block size.
	BlockSize = 1 << 20
)

// Key prefixes. Receipts are stored under their serial so replay comes out in
// the order they were saved; the id index finds duplicates.
const (
	prefixVersion byte = iota
	prefixReceipt
	prefixID
)

const serialLen = 8

// T is a badger receipt store.
type T struct {
	Ctx     context.T
	WG      *sync.WaitGroup
	dataDir string
	Logger  *logger
	*badger.DB
	seq *badger.Sequence
}

// New creates a store; Init opens it.
func New(c context.T, wg *sync.WaitGroup, logLevel int) (r *T) {
	if wg == nil {
		wg = &sync.WaitGroup{}
	}
	return &T{Ctx: c, WG: wg, Logger: NewLogger(logLevel, "zapdb")}
}

// Path returns the path where the database files are stored.
func (r *T) Path() string { return r.dataDir }

// Init opens the database at path, creating it if needed.
func (r *T) Init(path string) (err error) {
	r.dataDir = path
	log.I.Ln("opening zap receipt store at", r.Path())
	opts := badger.DefaultOptions(r.dataDir)
	opts.BlockSize = BlockSize
	opts.CompactL0OnClose = true
	opts.Compression = options.None
	opts.Logger = r.Logger
	if r.DB, err = badger.Open(opts); chk.E(err) {
		return
	}
	if r.seq, err = r.DB.GetSequence([]byte{prefixVersion, 's'}, 1000); chk.E(err) {
		return
	}
	return r.runMigrations()
}

func (r *T) runMigrations() (err error) {
	return r.Update(func(txn *badger.Txn) (err error) {
		var version uint16
		var item *badger.Item
		item, err = txn.Get([]byte{prefixVersion})
		if errors.Is(err, badger.ErrKeyNotFound) {
			version = 0
		} else if chk.E(err) {
			return
		} else if err = item.Value(func(val []byte) (err error) {
			version = binary.BigEndian.Uint16(val)
			return
		}); chk.E(err) {
			return
		}
		if version > Version {
			return errorf.E("database version %d is newer than this program's %d",
				version, Version)
		}
		if version < Version {
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, Version)
			return txn.Set([]byte{prefixVersion}, buf)
		}
		return nil
	})
}

func idKey(id []byte) []byte { return append([]byte{prefixID}, id...) }

func receiptKey(ser []byte) []byte { return append([]byte{prefixReceipt}, ser...) }

// SaveReceipt stores a receipt along with the zapper it was validated
// against.
func (r *T) SaveReceipt(ev *event.T, zapper []byte) (err error) {
	r.WG.Add(1)
	defer r.WG.Done()
	var s uint64
	if s, err = r.seq.Next(); chk.E(err) {
		return
	}
	ser := make([]byte, serialLen)
	binary.BigEndian.PutUint64(ser, s)
	val := make([]byte, 0, 1+len(zapper)+512)
	val = append(val, byte(len(zapper)))
	val = append(val, zapper...)
	val = ev.Marshal(val)
	return r.Update(func(txn *badger.Txn) (err error) {
		if _, err = txn.Get(idKey(ev.ID)); err == nil {
			return ErrDupReceipt
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return
		}
		if err = txn.Set(idKey(ev.ID), ser); chk.E(err) {
			return
		}
		return txn.Set(receiptKey(ser), val)
	})
}

// Has reports whether a receipt with id is stored.
func (r *T) Has(id []byte) (found bool, err error) {
	err = r.View(func(txn *badger.Txn) (err error) {
		if _, err = txn.Get(idKey(id)); err == nil {
			found = true
		} else if errors.Is(err, badger.ErrKeyNotFound) {
			err = nil
		}
		return
	})
	return
}

// Receipts calls fn with every stored receipt in the order they were saved,
// until fn returns false. Records that fail to decode are skipped.
func (r *T) Receipts(fn func(ev *event.T, zapper []byte) bool) (err error) {
	prefix := []byte{prefixReceipt}
	return r.View(func(txn *badger.Txn) (err error) {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         prefix,
		})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var val []byte
			if val, err = it.Item().ValueCopy(nil); chk.E(err) {
				return
			}
			if len(val) < 1 || len(val) < 1+int(val[0]) {
				log.W.F("short receipt record %0x", it.Item().Key())
				continue
			}
			zapper := val[1 : 1+int(val[0])]
			ev := event.New()
			if err = ev.Unmarshal(val[1+int(val[0]):]); chk.E(err) {
				err = nil
				continue
			}
			if !fn(ev, zapper) {
				return
			}
		}
		return
	})
}

// Count is the number of stored receipts.
func (r *T) Count() (n int, err error) {
	err = r.Receipts(func(*event.T, []byte) bool { n++; return true })
	return
}

// Close waits for pending writes and closes the database.
func (r *T) Close() (err error) {
	r.WG.Wait()
	chk.E(r.DB.Sync())
	if err = r.seq.Release(); chk.E(err) {
		return
	}
	if err = r.DB.Close(); chk.E(err) {
		return
	}
	log.I.F("closed zap receipt store %s", r.Path())
	return
}
