package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/gateway"
	"github.com/calder-ai/relay/internal/store/cache"
	"github.com/calder-ai/relay/pkg/api"
)

func getModels(t *testing.T, r *gin.Engine) map[string][]gateway.ModelInfo {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string][]gateway.ModelInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListModels_CachesCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &fakeService{models: []gateway.ModelInfo{
		{Backend: "local", Descriptor: api.ModelDescriptor{ID: "llama3", Tier: api.TierLow}, Default: true},
	}}

	r := gin.New()
	r.GET("/v1/models", NewModelHandler(svc, cache.NewMemoryCache(), zap.NewNop()).ListModels)

	body := getModels(t, r)
	require.Len(t, body["data"], 1)
	assert.Equal(t, "llama3", body["data"][0].Descriptor.ID)
	assert.True(t, body["data"][0].Default)

	// Mutate the underlying catalog; the cached copy must still be served.
	svc.models = nil
	body = getModels(t, r)
	assert.Len(t, body["data"], 1)
}

func TestPreview(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &fakeService{route: api.RouteResult{
		Backend: "local",
		Model:   "llama3",
		Score:   25,
		Reason:  "complexity route (score=25, tier=low)",
	}}

	r := gin.New()
	r.POST("/v1/routes/preview", NewRouteHandler(svc).Preview)

	w := postJSON(t, r, "/v1/routes/preview",
		`{"messages":[{"role":"user","content":"summarize this for me"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result api.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "local", result.Backend)
	assert.Equal(t, "llama3", result.Model)
	assert.Equal(t, 25, result.Score)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", NewHealthHandler().Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
