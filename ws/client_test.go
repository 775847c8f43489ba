package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"zapbox.lol/envelopes/eoseenvelope"
	"zapbox.lol/envelopes/eventenvelope"
	"zapbox.lol/envelopes/okenvelope"
	"zapbox.lol/event"
	"zapbox.lol/filter"
	"zapbox.lol/kind"
	"zapbox.lol/normalize"
	"zapbox.lol/p256k"
	"zapbox.lol/tag"
	"zapbox.lol/tags"
	"zapbox.lol/timestamp"
)

func textNote(t *testing.T, k *kind.T) *event.T {
	signer := &p256k.Signer{}
	require.NoError(t, signer.Generate())
	ev := &event.T{
		Kind:      k,
		Content:   []byte("hello"),
		CreatedAt: timestamp.FromUnix(1672068534), // random fixed timestamp
		Tags:      tags.New(tag.New("foo", "bar")),
	}
	require.NoError(t, ev.Sign(signer))
	return ev
}

func receiveEvent(t *testing.T, conn *websocket.Conn) *event.T {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		t.Errorf("websocket.Message.Receive: %v", err)
		return nil
	}
	env, err := eventenvelope.ParseSubmission(b)
	if err != nil {
		t.Errorf("not an EVENT message: %s", b)
		return nil
	}
	return env.T
}

func TestPublish(t *testing.T) {
	note := textNote(t, kind.TextNote)
	var mu sync.Mutex // guards published to satisfy go test -race
	var published bool
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		got := receiveEvent(t, conn)
		if got == nil {
			return
		}
		mu.Lock()
		published = string(got.Serialize()) == string(note.Serialize())
		mu.Unlock()
		res := okenvelope.NewFrom(note.ID, true, "").Marshal(nil)
		if err := websocket.Message.Send(conn, res); err != nil {
			t.Errorf("websocket.Message.Send: %v", err)
		}
		io.ReadAll(conn)
	})
	defer ws.Close()
	rl := mustRelayConnect(t, ws.URL)
	defer rl.Close()
	require.NoError(t, rl.Publish(context.Background(), note))
	mu.Lock()
	defer mu.Unlock()
	require.True(t, published, "fake relay server saw no matching event")
}

func TestPublishBlocked(t *testing.T) {
	note := textNote(t, kind.TextNote)
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		receiveEvent(t, conn)
		res := okenvelope.NewFrom(note.ID, false,
			string(normalize.Blocked)+": no reason").Marshal(nil)
		if err := websocket.Message.Send(conn, res); err != nil {
			t.Errorf("websocket.Message.Send: %v", err)
		}
		io.ReadAll(conn)
	})
	defer ws.Close()
	rl := mustRelayConnect(t, ws.URL)
	defer rl.Close()
	err := rl.Publish(context.Background(), note)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked")
}

func TestPublishWriteFailed(t *testing.T) {
	note := textNote(t, kind.TextNote)
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		// reject receive - force send error
		conn.Close()
	})
	defer ws.Close()
	rl := mustRelayConnect(t, ws.URL)
	// Force brief period of time so that publish always fails on closed socket.
	time.Sleep(10 * time.Millisecond)
	require.Error(t, rl.Publish(context.Background(), note))
}

func TestConnectContextCanceled(t *testing.T) {
	ws := newWebsocketServer(discardingHandler)
	defer ws.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // make ctx expired
	_, err := Connect(ctx, ws.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Connect returned %v error; want context.Canceled", err)
	}
}

func TestConnectWithOrigin(t *testing.T) {
	// default handler requires origin golang.org/x/net/websocket
	ws := httptest.NewServer(websocket.Handler(discardingHandler))
	defer ws.Close()
	r := NewClient(context.Background(), ws.URL)
	r.RequestHeader = http.Header{"origin": {"https://example.com"}}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, r.Connect(ctx))
	r.Close()
}

func TestSubscribeFiltersInbound(t *testing.T) {
	good := textNote(t, kind.TextNote)
	other := textNote(t, kind.Zap)
	forged := textNote(t, kind.TextNote)
	forged.Content = []byte("changed after signing")
	ws := newWebsocketServer(func(conn *websocket.Conn) {
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			t.Errorf("websocket.JSON.Receive: %v", err)
			return
		}
		if string(raw[0]) != `"REQ"` || string(raw[1]) != `"sub"` {
			t.Errorf("unexpected request %s %s", raw[0], raw[1])
		}
		for _, ev := range []*event.T{other, forged, good} {
			websocket.Message.Send(conn,
				eventenvelope.NewResultWith("sub", ev).Marshal(nil))
		}
		websocket.Message.Send(conn,
			eventenvelope.NewResultWith("unknown", good).Marshal(nil))
		websocket.Message.Send(conn, eoseenvelope.NewFrom("sub").Marshal(nil))
		io.ReadAll(conn)
	})
	defer ws.Close()
	got := make(chan Message, 10)
	rl := NewClient(context.Background(), ws.URL,
		WithMessageHandler(func(m Message) { got <- m }))
	require.NoError(t, rl.Connect(context.Background()))
	defer rl.Close()
	require.NoError(t, rl.Subscribe("sub", &filter.T{Kinds: []*kind.T{kind.TextNote}}))
	first := <-got
	res, ok := first.Envelope.(*eventenvelope.Result)
	require.True(t, ok, "expected an event, got %s", first.Envelope.Label())
	require.Equal(t, good.ID, res.Event.ID)
	require.Equal(t, rl.URL(), first.Relay)
	second := <-got
	_, ok = second.Envelope.(*eoseenvelope.T)
	require.True(t, ok, "expected EOSE, got %s", second.Envelope.Label())
}

func discardingHandler(conn *websocket.Conn) {
	io.ReadAll(conn) // discard all input
}

func newWebsocketServer(handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(&websocket.Server{
		Handshake: anyOriginHandshake,
		Handler:   handler,
	})
}

// anyOriginHandshake is an alternative to default in golang.org/x/net/websocket
// which checks for origin. nostr client sends no origin and it makes no difference
// for the tests here anyway.
var anyOriginHandshake = func(conf *websocket.Config, r *http.Request) error {
	return nil
}

func mustRelayConnect(t *testing.T, url string) *Client {
	rl, err := Connect(context.Background(), url)
	require.NoError(t, err)
	return rl
}
