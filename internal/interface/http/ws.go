package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sundialhq/sundial/internal/domain/location"
	"github.com/sundialhq/sundial/internal/domain/theme"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 16
)

// wsEvent is the server-to-client wire format.
type wsEvent struct {
	Type       string              `json:"type"`
	State      theme.State         `json:"state,omitempty"`
	Title      string              `json:"title,omitempty"`
	Message    string              `json:"message,omitempty"`
	Severity   string              `json:"severity,omitempty"`
	DurationMs int64               `json:"durationMs,omitempty"`
	Query      string              `json:"query,omitempty"`
	Locations  []location.Location `json:"locations,omitempty"`
	Location   *location.Location  `json:"location,omitempty"`
	Code       string              `json:"code,omitempty"`
}

// wsCommand is the client-to-server wire format.
type wsCommand struct {
	Type     string             `json:"type"`
	Query    string             `json:"query,omitempty"`
	Location *location.Location `json:"location,omitempty"`
}

// Hub fans theme events out to connected websocket clients and carries
// the interactive location flow: debounced search, candidate lists and
// selection. It implements the scheduler's UI collaborator contract.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	debounce time.Duration

	mu       sync.Mutex
	clients  map[string]*wsClient
	themeSvc theme.Service
	locSvc   location.Service
}

// NewHub constructs an unbound hub; Bind attaches the services once the
// dependency graph is complete.
func NewHub(debounce time.Duration, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger.With("component", "http.hub"),
		debounce: debounce,
		clients:  make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Bind attaches the domain services. The hub is constructed before them
// because it doubles as the scheduler's UI collaborator.
func (h *Hub) Bind(themeSvc theme.Service, locSvc location.Service) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.themeSvc = themeSvc
	h.locSvc = locSvc
}

// ApplyTheme broadcasts a derived state change to every client.
func (h *Hub) ApplyTheme(state theme.State) {
	h.broadcast(wsEvent{Type: "theme", State: state})
}

// Notify implements theme.UI.
func (h *Hub) Notify(_ context.Context, n theme.Notification) {
	h.broadcast(wsEvent{
		Type:       "notice",
		Title:      n.Title,
		Message:    n.Message,
		Severity:   n.Severity,
		DurationMs: n.Duration.Milliseconds(),
	})
}

// PromptLocation implements theme.UI: it asks clients to open their
// location selection flow.
func (h *Hub) PromptLocation(_ context.Context) {
	h.broadcast(wsEvent{Type: "prompt-location"})
}

func (h *Hub) broadcast(event wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		client.enqueue(event)
	}
}

// Serve upgrades the request and runs the client loops.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan wsEvent, wsSendBuffer),
	}
	client.debouncer = location.NewDebouncer(h.debounce, h.searchFunc(), client.deliverResults)

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "client", client.id)

	go client.writePump()
	client.readPump(c.Request.Context())
}

func (h *Hub) searchFunc() location.SearchFunc {
	return func(ctx context.Context, query string) ([]location.Location, error) {
		h.mu.Lock()
		svc := h.locSvc
		h.mu.Unlock()
		if svc == nil {
			return nil, apperrors.Wrap("provider_error", "search unavailable", nil)
		}
		return svc.Search(ctx, query)
	}
}

func (h *Hub) selectLocation(ctx context.Context, raw location.Location) (location.Location, error) {
	h.mu.Lock()
	svc := h.themeSvc
	h.mu.Unlock()
	if svc == nil {
		return location.Location{}, apperrors.Wrap("invalid_location", "theme service unavailable", nil)
	}
	return svc.SelectLocation(ctx, raw)
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[client.id]
	delete(h.clients, client.id)
	h.mu.Unlock()
	if ok {
		client.debouncer.Dispose()
		client.shutdown()
		h.logger.Info("websocket client disconnected", "client", client.id)
	}
}

type wsClient struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan wsEvent
	debouncer *location.Debouncer

	// mu orders enqueue against shutdown: a search response that was
	// already past the debouncer's disposed check must never hit a
	// closed send channel.
	mu     sync.Mutex
	closed bool
}

func (c *wsClient) enqueue(event wsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- event:
	default:
		// Slow consumer; drop the event rather than block the hub.
	}
}

// shutdown closes the send channel exactly once, after which enqueue
// becomes a no-op.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *wsClient) deliverResults(query string, results []location.Location, err error) {
	if err != nil {
		c.enqueue(wsEvent{
			Type:    "search-error",
			Query:   query,
			Message: apperrors.Message(err, "unable to search locations, please try again later"),
			Code:    errorCode(err),
		})
		return
	}
	c.enqueue(wsEvent{Type: "candidates", Query: query, Locations: results})
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd wsCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "client", c.id, "error", err)
			}
			return
		}

		switch cmd.Type {
		case "search":
			c.debouncer.Query(ctx, cmd.Query)
		case "select":
			if cmd.Location == nil {
				c.enqueue(wsEvent{Type: "search-error", Message: "no location provided", Code: "invalid_location"})
				continue
			}
			committed, err := c.hub.selectLocation(ctx, *cmd.Location)
			if err != nil {
				c.enqueue(wsEvent{
					Type:    "search-error",
					Message: apperrors.Message(err, "failed to update location"),
					Code:    errorCode(err),
				})
				continue
			}
			c.enqueue(wsEvent{Type: "selected", Location: &committed})
		default:
			c.hub.logger.Debug("unknown websocket command", "client", c.id, "type", cmd.Type)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

var _ theme.UI = (*Hub)(nil)
