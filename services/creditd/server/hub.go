package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"creditchain/core"
	"creditchain/core/types"
	"creditchain/observability"
)

const (
	defaultStreamBuffer = 64
	wsWriteTimeout      = 10 * time.Second
)

// subscriber receives results whose events match one of its type filters.
// A filter is an exact type or, ending in ".", a type prefix. No filters
// match everything.
type subscriber struct {
	filters []string
	ch      chan core.Result
	dropped chan struct{}
	once    sync.Once
}

func (s *subscriber) drop() {
	s.once.Do(func() { close(s.dropped) })
}

func (s *subscriber) filter(res core.Result) (core.Result, bool) {
	if len(s.filters) == 0 {
		return res, true
	}
	var matched []types.Event
	for _, ev := range res.Events {
		for _, f := range s.filters {
			if ev.Matches(f) {
				matched = append(matched, ev)
				break
			}
		}
	}
	if len(matched) == 0 {
		return res, false
	}
	res.Events = matched
	return res, true
}

// hub fans committed results out to websocket subscribers. publish runs on
// the executor goroutine and never blocks: a subscriber whose buffer is full
// is dropped.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
}

func newHub(buffer int) *hub {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	return &hub{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

func (h *hub) subscribe(filters []string) *subscriber {
	sub := &subscriber{
		filters: filters,
		ch:      make(chan core.Result, h.buffer),
		dropped: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *hub) publish(res core.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		out, ok := sub.filter(res)
		if !ok {
			continue
		}
		select {
		case sub.ch <- out:
		default:
			delete(h.subs, sub)
			sub.drop()
			observability.Events().RecordDropped("stream", "slow_subscriber")
		}
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func parseFilters(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := s.hub.subscribe(parseFilters(r.URL.Query().Get("types")))
	defer s.hub.unsubscribe(sub)

	// The stream is write-only; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.dropped:
			conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return
		case res := <-sub.ch:
			if err := writeResult(ctx, conn, res); err != nil {
				if websocket.CloseStatus(err) == -1 {
					s.logger.Debug("websocket write failed", "error", err)
					conn.Close(websocket.StatusInternalError, "write failed")
				}
				return
			}
		}
	}
}

func writeResult(ctx context.Context, conn *websocket.Conn, res core.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
