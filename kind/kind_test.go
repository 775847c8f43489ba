package kind

import (
	"testing"
)

func TestEphemeral(t *testing.T) {
	for _, k := range []*T{WalletRequest, WalletResponse} {
		if !k.IsEphemeral() {
			t.Fatalf("%s should be ephemeral", k.Name())
		}
	}
	for _, k := range []*T{ZapRequest, Zap, PrivateZapNote, WalletInfo} {
		if k.IsEphemeral() {
			t.Fatalf("%s should not be ephemeral", k.Name())
		}
	}
	var nilKind *T
	if nilKind.IsEphemeral() {
		t.Fatal("nil kind is not ephemeral")
	}
}

func TestEqual(t *testing.T) {
	if !New(9735).Equal(Zap) {
		t.Fatal("expected equal kinds")
	}
	var a, b *T
	if !a.Equal(b) || a.Equal(Zap) {
		t.Fatal("nil kinds only equal nil")
	}
	if string(Zap.Marshal(nil)) != "9735" {
		t.Fatal("bad marshal")
	}
}
