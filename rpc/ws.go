package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"sharepool/core/events"
)

const (
	wsWriteTimeout   = 10 * time.Second
	defaultHubBuffer = 64
)

type subscriber struct {
	ch     chan []byte
	filter string
}

// Hub fans committed events out to websocket subscribers. Subscribers that
// fall a full buffer behind are disconnected.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	raw := payload.Event()
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.filter != "" && !strings.HasPrefix(raw.Type, sub.filter) {
			continue
		}
		select {
		case sub.ch <- data:
		default:
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

func (h *Hub) subscribe(filter string) (*subscriber, func()) {
	sub := &subscriber{ch: make(chan []byte, h.buffer), filter: filter}
	h.mu.Lock()
	if h.closed {
		close(sub.ch)
	} else {
		h.subs[sub] = struct{}{}
	}
	h.mu.Unlock()
	return sub, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// Subscribers returns the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "StreamDisabled", "event streaming is not enabled")
		return
	}
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub, cancel := s.hub.subscribe(filter)
	defer cancel()
	// Clients never send; CloseRead surfaces their disconnect through ctx.
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, sub.ch); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "subscriber dropped")
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
