package stream

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type pongMessage struct {
	Type string `json:"type"`
}

// WSHandler upgrades the request to a WebSocket and streams committed
// entries to the client until either side disconnects. A client text
// frame containing "ping" is answered with {"type":"pong"}.
func WSHandler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)
		defer conn.Close()

		// Read loop doubles as disconnect detection and heartbeat.
		pongs := make(chan struct{}, 4)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				kind, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if kind == websocket.TextMessage && string(msg) == "ping" {
					select {
					case pongs <- struct{}{}:
					default:
					}
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-pongs:
				if err := conn.WriteJSON(pongMessage{Type: "pong"}); err != nil {
					return
				}
			case entry, ok := <-sub.Entries():
				if !ok {
					return
				}
				if err := conn.WriteJSON(entry); err != nil {
					logger.Debug("websocket write failed, closing subscriber", "error", err)
					return
				}
			}
		}
	}
}
