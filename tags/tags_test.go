package tags

import (
	"testing"

	"zapbox.lol/tag"
)

func TestGetFirstMatchesWholeKey(t *testing.T) {
	tt := New(
		tag.New("preimage", "00"),
		tag.New("p", "first"),
		tag.New("p", "second"),
		tag.New("e", "note"),
	)
	if v, ok := tt.GetFirstValue([]byte("p")); !ok || string(v) != "first" {
		t.Fatalf("got %q", v)
	}
	if n := tt.GetAll([]byte("p")).Len(); n != 2 {
		t.Fatalf("expected 2 p tags, got %d", n)
	}
	if tt.ContainsKey([]byte("anon")) {
		t.Fatal("no anon tag present")
	}
}

func TestMarshal(t *testing.T) {
	tt := New(tag.New("anon"), tag.New("relays", "wss://a", "wss://b"))
	want := `[["anon"],["relays","wss://a","wss://b"]]`
	if got := string(tt.Marshal(nil)); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if got := string(New().Marshal(nil)); got != "[]" {
		t.Fatalf("empty tags marshal to %s", got)
	}
}
