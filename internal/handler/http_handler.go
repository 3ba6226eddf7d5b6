package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HichuYamichu/goelearn-sub000/internal/service"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/middleware"
	"github.com/HichuYamichu/goelearn-sub000/pkg/response"
)

// CurrentParticipantsResponse is the body of the peers query.
type CurrentParticipantsResponse struct {
	PeerIDs []string `json:"peer_ids"`
}

// Handler handles HTTP requests for the meeting relay.
type Handler struct {
	meetingService service.MeetingService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(meetingService service.MeetingService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		meetingService: meetingService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	meetings := r.Group("/meetings")
	{
		meetings.GET("/:class_id/current", h.authMiddleware.RequireAuth(), h.CurrentParticipants)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// CurrentParticipants lists the users currently joined to a class meeting,
// excluding the caller.
func (h *Handler) CurrentParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	classID := c.Param("class_id")
	peers, err := h.meetingService.CurrentParticipants(ctx, classID, userID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldClassID, classID).Msg("failed to list participants")
		response.InternalError(c, "failed to list participants")
		return
	}

	response.JSON(c, CurrentParticipantsResponse{PeerIDs: peers})
}
