package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const broadcastTimeout = 5 * time.Second

// Hub fans computed metric bundles out to websocket subscribers.
// Subscriber writes are serialized under the hub's mutex; a subscriber
// whose write fails is dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
	log  zerolog.Logger
}

// NewHub creates an empty subscriber hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[*websocket.Conn]struct{}),
		log:  log.With().Str("component", "stream_hub").Logger(),
	}
}

// Broadcast pushes a payload to every subscriber.
func (h *Hub) Broadcast(payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.subs {
		ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
		err := wsjson.Write(ctx, conn, payload)
		cancel()
		if err != nil {
			h.log.Debug().Err(err).Msg("Dropping stream subscriber")
			conn.Close(websocket.StatusPolicyViolation, "write failed")
			delete(h.subs, conn)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, conn)
}

// handleStream upgrades the connection and keeps it registered until the
// client disconnects. The stream is push-only; client messages are drained
// and ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS policy is enforced by the router
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}

	s.hub.add(conn)
	defer s.hub.remove(conn)

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	conn.Close(websocket.StatusNormalClosure, "")
}
