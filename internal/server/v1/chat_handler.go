package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calder-ai/relay/internal/gateway"
	"github.com/calder-ai/relay/internal/server/validator"
	"github.com/calder-ai/relay/pkg/api"
)

type ChatHandler struct {
	service gateway.Service
}

func NewChatHandler(service gateway.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseError(err)))
		return
	}

	// Token-level streaming is not part of the routing core.
	if req.Stream {
		_ = c.Error(api.NewError(http.StatusNotImplemented, "Not Implemented",
			"streaming is not supported; set stream to false"))
		return
	}

	resp, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(h.translate(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// translate maps gateway errors onto the problem taxonomy: caller errors
// stay 4xx, exhausted failover is a 502 with the full attempt list.
func (h *ChatHandler) translate(err error) error {
	var exhausted *gateway.ExhaustedError
	if errors.As(err, &exhausted) {
		return api.NewError(http.StatusBadGateway, "Backend Error",
			"all failover attempts exhausted",
			api.WithExtension("attempts", exhausted.Attempts),
			api.WithLog(err))
	}

	if errors.Is(err, gateway.ErrBackendNotRegistered) {
		return api.BadRequestError(err.Error())
	}
	if errors.Is(err, gateway.ErrNoBackends) {
		return api.NewError(http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	}

	return api.InternalError("Failed to process chat request", err)
}
