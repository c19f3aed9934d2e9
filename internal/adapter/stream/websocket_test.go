package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/loghub/internal/domain"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(WSHandler(hub, testLogger()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscriber(t *testing.T, hub *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSHandler(t *testing.T) {
	t.Run("Streams Committed Entries", func(t *testing.T) {
		hub := NewHub(16, testLogger(), nil)
		conn := dialTestHub(t, hub)
		waitForSubscriber(t, hub)

		hub.Publish(&domain.LogEntry{ID: 42, ServiceName: "checkout", Message: "hello"})

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got domain.LogEntry
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if got.ID != 42 || got.ServiceName != "checkout" {
			t.Errorf("unexpected entry: %+v", got)
		}
	})

	t.Run("Ping Gets Pong", func(t *testing.T) {
		hub := NewHub(16, testLogger(), nil)
		conn := dialTestHub(t, hub)
		waitForSubscriber(t, hub)

		if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var pong struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&pong); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if pong.Type != "pong" {
			t.Errorf("expected pong, got %q", pong.Type)
		}
	})

	t.Run("Client Disconnect Unsubscribes", func(t *testing.T) {
		hub := NewHub(16, testLogger(), nil)
		conn := dialTestHub(t, hub)
		waitForSubscriber(t, hub)

		conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.SubscriberCount() != 0 {
			if time.Now().After(deadline) {
				t.Fatal("subscriber not removed after disconnect")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
}
