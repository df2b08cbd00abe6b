package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tripnav/internal/access"
	"tripnav/internal/model"
	"tripnav/internal/opt"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	streamReadTimeout = 60 * time.Second
	streamPingEvery   = 20 * time.Second
)

// StreamMessage is one frame sent on the optimization stream.
type StreamMessage struct {
	Type     string              `json:"type"` // progress, result, error
	Progress *opt.Progress       `json:"progress,omitempty"`
	Result   *model.SearchResult `json:"result,omitempty"`
	Error    *Problem            `json:"error,omitempty"`
}

// wsConn serializes writes; progress may be reported from another goroutine.
type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *wsConn) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// StreamHandler handles GET /v1/itineraries/stream. The client sends one
// optimize request; the server answers with a progress frame per search type
// and a final result (or error) frame, then closes.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !requireTier(p, model.TierAuthenticated, model.TierAdmin) {
		writeProblem(w, http.StatusUnauthorized, "Authentication required", "log in to stream optimization progress", r.URL.Path)
		return
	}
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	defer conn.close(websocket.CloseNormalClosure, "done")

	raw.SetReadLimit(maxBodyBytes)
	_ = raw.SetReadDeadline(time.Now().Add(streamReadTimeout))
	raw.SetPongHandler(func(string) error { return raw.SetReadDeadline(time.Now().Add(streamReadTimeout)) })

	var req model.OptimizeRequest
	if err := raw.ReadJSON(&req); err != nil {
		_ = conn.send(StreamMessage{Type: "error", Error: &Problem{Type: "about:blank", Title: "Invalid JSON", Status: http.StatusBadRequest, Detail: err.Error()}})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The read loop notices the client going away and handles pongs.
	go func() {
		defer cancel()
		for {
			if _, _, err := raw.NextReader(); err != nil {
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(streamPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	var (
		mu       sync.Mutex
		reported = map[model.SearchType]bool{}
	)
	ctx = opt.WithProgress(ctx, func(pr opt.Progress) {
		mu.Lock()
		reported[pr.SearchType] = true
		mu.Unlock()
		_ = conn.send(StreamMessage{Type: "progress", Progress: &pr})
	})
	res, err := s.Optimizer.Optimize(ctx, req)
	if err != nil {
		rec := &problemRecorder{}
		s.writeOptimizeError(rec, r, err)
		if rec.problem.Status != 0 {
			_ = conn.send(StreamMessage{Type: "error", Error: &rec.problem})
		}
		return
	}
	// Cache hits and joined runs report no live progress.
	mu.Lock()
	for _, pr := range opt.ReplayProgress(res) {
		if !reported[pr.SearchType] {
			_ = conn.send(StreamMessage{Type: "progress", Progress: &pr})
		}
	}
	mu.Unlock()
	_ = conn.send(StreamMessage{Type: "result", Result: access.Filter(res, p.Tier, s.today())})
}

// problemRecorder captures the problem document writeOptimizeError would send.
type problemRecorder struct {
	header  http.Header
	problem Problem
}

func (p *problemRecorder) Header() http.Header {
	if p.header == nil {
		p.header = http.Header{}
	}
	return p.header
}

func (p *problemRecorder) Write(b []byte) (int, error) {
	return len(b), json.Unmarshal(b, &p.problem)
}

func (p *problemRecorder) WriteHeader(int) {}
