package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialAs(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	if userID != "" {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "init", "userId": userID}))
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (Message, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return Message{}, false
	}
	return msg, true
}

func TestTargetedBroadcastReachesOnlyThatUser(t *testing.T) {
	hub, url := startHub(t)

	alice := dialAs(t, url, "B-00001")
	bob := dialAs(t, url, "B-00002")

	// Let the init messages reach the registry.
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Message{UserID: "B-00001", Content: "order update", OrderID: "O-00009"})

	msg, ok := readMessage(t, alice)
	require.True(t, ok)
	assert.Equal(t, "order update", msg.Content)
	assert.Equal(t, "O-00009", msg.OrderID)

	_, ok = readMessage(t, bob)
	assert.False(t, ok, "untargeted session must not receive the message")
}

func TestGlobalBroadcastReachesAllSessions(t *testing.T) {
	hub, url := startHub(t)

	alice := dialAs(t, url, "B-00001")
	anon := dialAs(t, url, "")

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Message{Content: "maintenance tonight"})

	msg, ok := readMessage(t, alice)
	require.True(t, ok)
	assert.Equal(t, "maintenance tonight", msg.Content)

	msg, ok = readMessage(t, anon)
	require.True(t, ok)
	assert.Equal(t, "maintenance tonight", msg.Content)
}

func TestShutdownReleasesSessionsAndBroadcasters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	router := gin.New()
	router.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn := dialAs(t, url, "B-00001")
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-hubDone:
	case <-time.After(time.Second):
		t.Fatal("hub run loop did not stop")
	}

	// The read pump's unregister must not hang once the run loop is gone.
	conn.Close()

	// Broadcast must keep returning even with nobody draining the channel.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer*2; i++ {
			hub.Broadcast(Message{Content: "after shutdown"})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after shutdown")
	}
}

func TestBroadcastToUnknownUserDeliversNothing(t *testing.T) {
	hub, url := startHub(t)

	conn := dialAs(t, url, "B-00001")
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Message{UserID: "B-99999", Content: "lost"})

	_, ok := readMessage(t, conn)
	assert.False(t, ok)
}
