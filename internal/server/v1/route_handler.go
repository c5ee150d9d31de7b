package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calder-ai/relay/internal/gateway"
	"github.com/calder-ai/relay/internal/server/validator"
	"github.com/calder-ai/relay/pkg/api"
)

type RouteHandler struct {
	service gateway.Service
}

func NewRouteHandler(service gateway.Service) *RouteHandler {
	return &RouteHandler{service: service}
}

type previewRequest struct {
	Messages []api.ChatMessage `json:"messages" binding:"required,min=1,dive"`
	Media    []string          `json:"media,omitempty"`
	Mode     api.RouteMode     `json:"mode,omitempty"`
	Model    string            `json:"model,omitempty"`
}

// Preview resolves a route without dispatching, so operators can audit
// what the router would decide for a given conversation.
func (h *RouteHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	result := h.service.Preview(c.Request.Context(), api.RoutingRequest{
		Messages:       req.Messages,
		Media:          req.Media,
		Mode:           req.Mode,
		RequestedModel: req.Model,
	})

	c.JSON(http.StatusOK, result)
}
