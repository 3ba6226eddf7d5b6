package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HichuYamichu/goelearn-sub000/internal/auth"
	"github.com/HichuYamichu/goelearn-sub000/internal/config"
	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/internal/hub"
	"github.com/HichuYamichu/goelearn-sub000/internal/metrics"
	"github.com/HichuYamichu/goelearn-sub000/internal/service"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
)

// reasonNoFrame labels handshakes where no first frame arrived in time.
const reasonNoFrame = "no_frame"

// Authenticator checks the first frame of a connection.
type Authenticator interface {
	Authenticate(ctx context.Context, frame []byte) (domain.Identity, error)
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *hub.Hub
	gate     Authenticator
	service  service.MeetingService
	config   config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, gate Authenticator, svc service.MeetingService, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		gate:    gate,
		service: svc,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection, runs the Auth handshake and then
// hands the session to the hub.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	if h.config.MaxMessageSize > 0 {
		conn.SetReadLimit(h.config.MaxMessageSize)
	}

	id, err := h.handshake(ctx, conn)
	if err != nil {
		reason := reasonNoFrame
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		metrics.AuthFailures.WithLabelValues(reason).Inc()
		l.Info().Err(err).Str("reason", reason).Msg("rejecting meeting connection")
		h.reject(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}
	c.Set(log.FieldUserID, id.UserID)

	if err := h.service.OnAuthenticated(ctx, id); err != nil {
		l.Error().Err(err).Str(log.FieldClassID, id.ClassID).Msg("failed to record presence")
		h.reject(conn, websocket.CloseInternalServerErr, "presence unavailable")
		return
	}

	sub, err := h.service.Subscribe(ctx, id)
	if err != nil {
		l.Error().Err(err).Str(log.FieldClassID, id.ClassID).Msg("failed to subscribe")
		h.service.Teardown(context.WithoutCancel(ctx), id)
		h.reject(conn, websocket.CloseInternalServerErr, "bus unavailable")
		return
	}

	client := hub.NewClient(h.hub, conn, id, h.service, sub)
	_ = client.Run(ctx)
}

// handshake reads exactly one frame, bounded by the auth timeout, and
// authenticates it.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (domain.Identity, error) {
	if h.config.AuthTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.config.AuthTimeout))
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return domain.Identity{}, err
	}
	conn.SetReadDeadline(time.Time{})

	return h.gate.Authenticate(ctx, frame)
}

func (h *WSHandler) reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(h.config.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}
