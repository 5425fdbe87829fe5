package teleop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rover/internal/protocol"
)

// echoRover answers every binary frame with a TIMEOUT event and hands the
// frames it received to got.
func echoRover(t *testing.T, got chan<- []byte) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- data
			_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
			_ = conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeEvent(protocol.EventTimeout))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLinkRoundTrip(t *testing.T) {
	got := make(chan []byte, 4)
	srv := echoRover(t, got)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	link, err := Dial(ctx, wsURL(srv))
	require.NoError(t, err)

	require.NoError(t, link.Control(protocol.ControlSpeed, -50))
	assert.Equal(t, []byte{0x01, 0xce, 0xff}, <-got)

	select {
	case tag := <-link.Events():
		assert.Equal(t, protocol.EventTimeout, tag)
	case <-time.After(2 * time.Second):
		t.Fatal("no event from rover")
	}

	require.NoError(t, link.Event(protocol.EventEmergencyStop))
	assert.Equal(t, []byte{0x02}, <-got)

	require.NoError(t, link.Close())
	select {
	case <-link.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not end after Close")
	}
	assert.ErrorIs(t, link.Control(protocol.ControlSpeed, 0), ErrLinkClosed)
}

func TestLinkServerGone(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the connection without a close frame.
		_ = conn.Close()
	}))
	defer srv.Close()

	link, err := Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer link.Close()

	select {
	case _, ok := <-link.Events():
		assert.False(t, ok, "events channel closes with the link")
	case <-time.After(2 * time.Second):
		t.Fatal("link did not notice the server going away")
	}
	assert.Error(t, link.Err())
}

func TestDialRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	_, err := Dial(context.Background(), url)
	assert.Error(t, err)
}
