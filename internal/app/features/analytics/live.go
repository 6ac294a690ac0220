// internal/app/features/analytics/live.go
package analytics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/stratalead/internal/app/system/apicors"
	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/stratalead/internal/app/system/timeouts"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

func newUpgrader(origins apicors.Origins) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     origins.CheckOrigin,
	}
}

// Client actions on the live socket.
const (
	ActionYear    = "year"
	ActionMonth   = "month"
	ActionDay     = "day"
	ActionClear   = "clear"
	ActionRefresh = "refresh"
)

// Server message types on the live socket.
const (
	MessageFilter    = "filter"
	MessageDays      = "days"
	MessageDashboard = "dashboard"
	MessageError     = "error"
)

// ClientMessage is a filter change sent by the dashboard.
//
//	{"action": "year", "value": 2025}
//	{"action": "clear", "level": "month"}
type ClientMessage struct {
	Action string `json:"action"`
	Value  int    `json:"value,omitempty"`
	Level  string `json:"level,omitempty"` // clear: "all" (default), "month", "day"
}

// ServerMessage is pushed to the dashboard. Each dashboard message is a full
// replacement of the previous one.
type ServerMessage struct {
	Type      string                        `json:"type"`
	Filter    *analytics.TimeFilter         `json:"filter,omitempty"`
	Days      []int                         `json:"days,omitempty"`
	Dashboard *analytics.DashboardViewModel `json:"dashboard,omitempty"`
	Error     string                        `json:"error,omitempty"`
}

// ApplyAction returns the filter that results from msg.
func ApplyAction(f analytics.TimeFilter, msg ClientMessage) (analytics.TimeFilter, error) {
	switch msg.Action {
	case ActionYear:
		return f.WithYear(msg.Value)
	case ActionMonth:
		return f.WithMonth(msg.Value)
	case ActionDay:
		return f.WithDay(msg.Value)
	case ActionClear:
		switch msg.Level {
		case "", "all":
			return f.Clear(), nil
		case "month":
			return f.ClearMonth(), nil
		case "day":
			return f.ClearDay(), nil
		}
		return f, fmt.Errorf("unknown clear level %q", msg.Level)
	case ActionRefresh:
		return f, nil
	default:
		return f, fmt.Errorf("unknown action %q", msg.Action)
	}
}

// Hub tracks live sessions so writes can trigger a refetch on every open
// dashboard.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	logger   *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{sessions: make(map[string]*session), logger: logger}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// RefreshAll refetches the current filter on every open session.
func (h *Hub) RefreshAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	if len(sessions) > 0 {
		h.logger.Debug("refreshing live dashboards", zap.Int("sessions", len(sessions)))
	}
	for _, s := range sessions {
		go s.run(s.coord.Refresh())
	}
}

// session is one live dashboard connection. Only the read loop changes the
// filter, and it takes the request token before handing the fetch to a
// goroutine; fetches run concurrently and the coordinator drops stale results.
type session struct {
	id     string
	conn   *websocket.Conn
	coord  *statsfetch.Coordinator
	send   chan ServerMessage
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	closeOnce sync.Once
}

// enqueue queues msg for the writer. A client that cannot keep up is
// disconnected rather than allowed to block publishers.
func (s *session) enqueue(msg ServerMessage) {
	select {
	case <-s.ctx.Done():
	case s.send <- msg:
	default:
		s.logger.Warn("live dashboard client too slow, closing")
		s.close()
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

// run fetches an already issued request.
func (s *session) run(req statsfetch.FetchRequest) {
	ctx, cancel := timeouts.WithTimeout(s.ctx, timeouts.Medium(), s.logger, "live dashboard fetch")
	defer cancel()

	if _, err := s.coord.Run(ctx, req); err != nil {
		s.logger.Warn("live dashboard fetch failed",
			zap.String("filter", req.Filter.Key()),
			zap.Uint64("token", req.Token),
			zap.Error(err))
		s.enqueue(ServerMessage{Type: MessageError, Error: "stats unavailable"})
	}
}

// announce tells the client about a new filter and, when a month is
// selected, its day options.
func (s *session) announce(filter analytics.TimeFilter) {
	f := filter
	s.enqueue(ServerMessage{Type: MessageFilter, Filter: &f})
	if days, err := analytics.DayOptions(filter); err == nil {
		s.enqueue(ServerMessage{Type: MessageDays, Days: days})
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("live dashboard write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readLoop() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	filter := analytics.TimeFilter{}
	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("live dashboard read failed", zap.Error(err))
			}
			return
		}

		next, err := ApplyAction(filter, msg)
		if err != nil {
			s.enqueue(ServerMessage{Type: MessageError, Error: err.Error()})
			continue
		}
		var req statsfetch.FetchRequest
		if msg.Action == ActionRefresh {
			req = s.coord.Refresh()
		} else {
			filter = next
			s.announce(filter)
			req = s.coord.Issue(filter)
		}
		go s.run(req)
	}
}

// Live handles GET /live by upgrading to a WebSocket. On connect the
// all-time dashboard is pushed; every filter change pushes the new filter,
// day options when a month is selected, and then the matching dashboard.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("live dashboard upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	logger := h.logger.With(zap.String("conn_id", id))
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		id:     id,
		conn:   conn,
		send:   make(chan ServerMessage, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	s.coord = statsfetch.New(statsfetch.Config{
		Provider:    h.provider,
		Logger:      logger,
		LabelPolicy: h.policy,
	})
	s.coord.Subscribe(func(vm analytics.DashboardViewModel) {
		s.enqueue(ServerMessage{Type: MessageDashboard, Dashboard: &vm})
	})

	h.hub.add(s)
	logger.Info("live dashboard connected", zap.Int("sessions", h.hub.Len()))

	go s.writeLoop()
	s.announce(analytics.TimeFilter{})
	go s.run(s.coord.Issue(analytics.TimeFilter{}))

	s.readLoop()

	h.hub.remove(s)
	logger.Info("live dashboard disconnected")
}
