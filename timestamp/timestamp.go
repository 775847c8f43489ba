// Package timestamp is the UNIX seconds timestamp used in nostr events.
package timestamp

import (
	"strconv"
	"time"
)

// T is a convenience type for UNIX 64 bit timestamps of 1 second
// precision.
type T int64

// Now returns the current UNIX timestamp of the current second.
func Now() *T {
	tt := T(time.Now().Unix())
	return &tt
}

// FromTime returns a T from a time.Time
func FromTime(t time.Time) *T {
	tt := T(t.Unix())
	return &tt
}

// FromUnix converts from a standard int64 unix timestamp.
func FromUnix(t int64) *T {
	tt := T(t)
	return &tt
}

// I64 returns the timestamp as int64, zero for a nil timestamp.
func (t *T) I64() int64 {
	if t == nil {
		return 0
	}
	return int64(*t)
}

// U64 returns the timestamp as uint64.
func (t *T) U64() uint64 { return uint64(t.I64()) }

// Time converts a timestamp into a time.Time.
func (t *T) Time() time.Time { return time.Unix(t.I64(), 0) }

// String renders the decimal form, as used in key derivations and logs.
func (t *T) String() string { return strconv.FormatInt(t.I64(), 10) }

// Marshal appends the decimal JSON form of the timestamp.
func (t *T) Marshal(dst []byte) (b []byte) { return strconv.AppendInt(dst, t.I64(), 10) }
