package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"zapbox.lol/p256k"
)

func keypair(t *testing.T) *p256k.Signer {
	s := &p256k.Signer{}
	require.NoError(t, s.Generate())
	return s
}

func TestConversationKeyIsSymmetric(t *testing.T) {
	a, b := keypair(t), keypair(t)
	ab, err := ConversationKey(a, b.Pub())
	require.NoError(t, err)
	ba, err := ConversationKey(b, a.Pub())
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.Len(t, ab, 32)
}

func TestEncryptDecrypt(t *testing.T) {
	a, b := keypair(t), keypair(t)
	ck, err := ConversationKey(a, b.Pub())
	require.NoError(t, err)
	for _, size := range []int{1, 31, 32, 33, 300, 5000, MaxPlaintextSize} {
		plain := frand.Bytes(size)
		payload, err := Encrypt(plain, ck)
		require.NoError(t, err)
		out, err := Decrypt(payload, ck)
		require.NoError(t, err)
		assert.Equal(t, plain, out)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	a, b, c := keypair(t), keypair(t), keypair(t)
	ck, err := ConversationKey(a, b.Pub())
	require.NoError(t, err)
	wrong, err := ConversationKey(a, c.Pub())
	require.NoError(t, err)
	payload, err := Encrypt([]byte(`{"kind":9733}`), ck)
	require.NoError(t, err)
	_, err = Decrypt(payload, wrong)
	assert.Error(t, err)
}

func TestEncryptRejectsEmpty(t *testing.T) {
	_, err := Encrypt(nil, make([]byte, 32))
	assert.Error(t, err)
	_, err = Decrypt(strings.Repeat("A", 10), make([]byte, 32))
	assert.Error(t, err)
}

func TestCalcPadding(t *testing.T) {
	for in, want := range map[int]int{
		1: 32, 32: 32, 33: 64, 64: 64, 65: 96, 100: 128, 200: 224, 320: 320, 515: 640,
	} {
		assert.Equal(t, want, calcPadding(in), "padding for %d", in)
	}
}
