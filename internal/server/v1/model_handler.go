package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/gateway"
	"github.com/calder-ai/relay/internal/store/cache"
)

const (
	modelCatalogKey = "relay:models"
	modelCatalogTTL = 30 * time.Second
)

type ModelHandler struct {
	service gateway.Service
	cache   cache.CacheService
	logger  *zap.Logger
}

func NewModelHandler(service gateway.Service, c cache.CacheService, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{service: service, cache: c, logger: logger}
}

// ListModels serves the aggregated model catalog, cached briefly so
// dashboards polling it don't hammer the registration table walk.
func (h *ModelHandler) ListModels(c *gin.Context) {
	var cached []gateway.ModelInfo
	if err := h.cache.Get(c.Request.Context(), modelCatalogKey, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"data": cached})
		return
	}

	models := h.service.ListModels()
	if err := h.cache.Set(c.Request.Context(), modelCatalogKey, models, modelCatalogTTL); err != nil {
		h.logger.Debug("model catalog cache write failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": models})
}
