package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"enferd/internal/serving"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventsHandler streams engine lifecycle events to a websocket client as JSON
// messages. Slow clients miss events rather than stalling the engine; the hub
// drops on full buffers.
func eventsHandler(hub *serving.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		events, unsubscribe := hub.Subscribe()
		defer unsubscribe()
		defer conn.Close()

		// Read loop only to detect disconnect.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-done:
				return
			case <-serverBaseCtx.Done():
				return
			}
		}
	}
}
