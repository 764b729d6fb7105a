package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"twitchtts/internal/app/infrastructure/storage"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	clock := clockwork.NewRealClock()
	hub := New(logger.Nop(), clock, storage.NewHistory[ports.ChatMessage](clock, 10, time.Minute))

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, time.Millisecond)
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_PumpBroadcastsChat(t *testing.T) {
	hub, conn := newTestHub(t)

	sub := make(chan ports.ChatMessage, 1)
	sub <- ports.ChatMessage{Channel: "#foo", Username: "alice", Text: "hi"}
	close(sub)
	hub.Pump(context.Background(), sub)

	ev := readEvent(t, conn)
	assert.Equal(t, EventChat, ev.Type)
	assert.Equal(t, "#foo", ev.Channel)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, "hi", ev.Message)
	assert.NotZero(t, ev.Time)

	assert.Equal(t, []ports.ChatMessage{{Channel: "#foo", Username: "alice", Text: "hi"}}, hub.History("#foo"))
}

func TestHub_SpeakBroadcastsLine(t *testing.T) {
	hub, conn := newTestHub(t)

	require.NoError(t, hub.Speak("alice said: hi"))

	ev := readEvent(t, conn)
	assert.Equal(t, Event{Type: EventSpoken, Line: "alice said: hi", Time: ev.Time}, ev)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, conn := newTestHub(t)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, time.Millisecond)

	hub.Broadcast(Event{Type: EventSpoken, Line: "nobody listens"})
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, conn := newTestHub(t)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_PumpStopsOnCancel(t *testing.T) {
	hub, _ := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Pump(ctx, make(chan ports.ChatMessage))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
}
