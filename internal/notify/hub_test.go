package notify

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	mux := http.NewServeMux()
	mux.Handle(EventsPath, hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func TestHubBroadcasts(t *testing.T) {
	hub, srv := newHubServer(t)
	a := dialHub(t, srv)
	b := dialHub(t, srv)

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit(TargetDetected(true, "Kiwoom.exe"))
	hub.Emit(RecordingStarted("/rec/recording_20260101_090000", "auto"))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		var first, second Event
		require.NoError(t, conn.ReadJSON(&first))
		require.NoError(t, conn.ReadJSON(&second))

		assert.Equal(t, KindTargetDetected, first.Kind)
		assert.True(t, first.Detected)
		assert.Equal(t, "Kiwoom.exe", first.Target)
		assert.Equal(t, KindRecordingStarted, second.Kind)
		assert.Equal(t, "/rec/recording_20260101_090000", second.OutputDir)
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Emitting with no clients must not block or panic.
	hub.Emit(RecordingDuration(1, 1))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, srv := newHubServer(t)
	_ = dialHub(t, srv) // never reads
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100000; i++ {
			hub.Emit(RecordingDuration(int64(i), i))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked on a slow client")
	}
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeListenerAndDial(t *testing.T) {
	hub := NewHub()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- hub.ServeListener(ctx, ln) }()

	got := make(chan Event, 4)
	dialCtx, stopDial := context.WithCancel(context.Background())
	dialed := make(chan error, 1)
	go func() {
		dialed <- Dial(dialCtx, ln.Addr().String(), func(e Event) { got <- e })
	}()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Emit(RecordingStopped("/rec/x", "manual", 7))

	select {
	case e := <-got:
		assert.Equal(t, KindRecordingStopped, e.Kind)
		assert.Equal(t, 7, e.Frames)
		assert.Equal(t, "manual", e.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	stopDial()
	select {
	case err := <-dialed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Dial did not return after cancel")
	}

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
}
