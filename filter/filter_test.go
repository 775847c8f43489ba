package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
	"zapbox.lol/tag"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

var (
	service = []byte{0x01, 0x02}
	us      = []byte{0xaa, 0xbb}
)

func walletFilter() *T {
	return &T{
		Kinds:   []*kind.T{kind.WalletResponse},
		Authors: [][]byte{service},
		Tags:    map[string][][]byte{"p": {us}},
		Limit:   L(0),
	}
}

func TestMarshal(t *testing.T) {
	assert.Equal(t,
		`{"kinds":[23195],"authors":["0102"],"#p":["aabb"],"limit":0}`,
		string(walletFilter().Serialize()))
	f := &T{Tags: map[string][][]byte{"t": {[]byte("b")}, "e": {[]byte{1}}}, Since: timestamp.FromUnix(5)}
	assert.Equal(t, `{"#e":["01"],"#t":["b"],"since":5}`, string(f.Serialize()))
}

func TestMatch(t *testing.T) {
	ev := &event.T{
		Pubkey:    service,
		Kind:      kind.WalletResponse,
		CreatedAt: timestamp.FromUnix(10),
		Tags:      tags.New(tag.New("p", hex.Enc(us))),
	}
	f := walletFilter()
	require.True(t, f.Match(ev))
	ev.Kind = kind.Zap
	require.False(t, f.Match(ev))
	ev.Kind = kind.WalletResponse
	ev.Tags = tags.New(tag.New("p", "ccdd"))
	require.False(t, f.Match(ev))
	ev.Tags = tags.New(tag.New("p", hex.Enc(us)))
	f.Since = timestamp.FromUnix(11)
	require.False(t, f.Match(ev))
}
