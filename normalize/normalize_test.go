package normalize

import (
	"testing"
)

func TestURL(t *testing.T) {
	for in, want := range map[string]string{
		"":                  "",
		"wss://x.com/y":     "wss://x.com/y",
		"wss://x.com/y/":    "wss://x.com/y",
		"http://x.com/y":    "ws://x.com/y",
		"https://x.com":     "wss://x.com",
		"WSS://X.com/":      "wss://x.com",
		"x.com":             "wss://x.com",
		"x.com////":         "wss://x.com",
		"x.com/?x=23":       "wss://x.com?x=23",
		"x.com:443":         "wss://x.com",
		"localhost:7447":    "ws://localhost:7447",
		"localhost:7447/ab": "ws://localhost:7447/ab",
		"localhost:notnum":  "",
	} {
		if got := URL(in); got != want {
			t.Errorf("URL(%q) = %q, want %q", in, got, want)
		}
	}
	if got := URL(URL("http://x.com/y")); got != "ws://x.com/y" {
		t.Errorf("normalizing twice changed the result: %s", got)
	}
}

func TestIsRelayURL(t *testing.T) {
	if !IsRelayURL("relay.example.com") || IsRelayURL("") {
		t.Fatal("unexpected relay url classification")
	}
}

func TestReason(t *testing.T) {
	if !Duplicate.IsPrefix("duplicate: already have this event") || Blocked.IsPrefix("blocked") {
		t.Fatal("prefix detection")
	}
}
