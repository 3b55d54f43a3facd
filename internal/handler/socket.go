package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/service"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = (socketPongWait * 9) / 10
	socketReadLimit  = 4096
	socketCloseGrace = time.Second
)

// LiveHub is the realtime hub surface used by the websocket endpoint
type LiveHub interface {
	Connect(ctx context.Context, jobID string, transport service.Transport) (*service.Subscription, error)
	Disconnect(sub *service.Subscription)
	HandleClientMessage(ctx context.Context, sub *service.Subscription, data []byte)
}

// SocketHandler upgrades job subscriptions to websockets
type SocketHandler struct {
	hub      LiveHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewSocketHandler creates a new websocket handler. allowedOrigins follows
// the CORS allow-list; "*" accepts any origin.
func NewSocketHandler(hub LiveHub, allowedOrigins []string, logger *slog.Logger) *SocketHandler {
	return &SocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Serve handles GET /ws/jobs/{jobId}/
func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transport := &socketTransport{w: w, r: r, upgrader: &h.upgrader}

	sub, err := h.hub.Connect(ctx, r.PathValue("jobId"), transport)
	if err != nil {
		if !errors.Is(err, service.ErrJobNotFound) {
			h.logger.Debug("websocket subscription refused", "job_id", r.PathValue("jobId"), "error", err)
		}
		return
	}
	defer h.hub.Disconnect(sub)

	conn := transport.connection()
	defer conn.Close()

	conn.SetReadLimit(socketReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	go keepAlive(conn, sub.Done())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", "job_id", sub.JobID, "error", err)
			}
			return
		}
		h.hub.HandleClientMessage(ctx, sub, data)
	}
}

// keepAlive pings the peer until the subscription ends. The reader is then
// given a short grace period to receive the peer's close reply.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(socketPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = conn.SetReadDeadline(time.Now().Add(socketCloseGrace))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				return
			}
		}
	}
}

// socketTransport adapts a gorilla websocket connection to service.Transport.
// The upgrade is deferred until Accept, or Close when a subscription is refused.
type socketTransport struct {
	w        http.ResponseWriter
	r        *http.Request
	upgrader *websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *socketTransport) connection() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *socketTransport) upgrade() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	conn, err := t.upgrader.Upgrade(t.w, t.r, nil)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

// Accept completes the websocket handshake
func (t *socketTransport) Accept() error {
	_, err := t.upgrade()
	return err
}

// Send writes one JSON frame
func (t *socketTransport) Send(msg *model.ServerMessage) error {
	conn := t.connection()
	if conn == nil {
		return service.ErrSubscriptionClosed
	}
	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// Close sends a close frame with code and closes the connection
func (t *socketTransport) Close(code int, reason string) error {
	conn, err := t.upgrade()
	if err != nil {
		return err
	}
	frame := websocket.FormatCloseMessage(code, reason)
	writeErr := conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(socketWriteWait))
	return errors.Join(writeErr, conn.Close())
}
