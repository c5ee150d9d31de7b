package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/internal/httpclient"
	"github.com/calder-ai/relay/internal/llm"
	"github.com/calder-ai/relay/pkg/api"
)

func init() {
	llm.Register("openai", NewAdapter)
}

// Default generation parameters applied when the caller leaves them unset.
const (
	defaultMaxTokens        = 8192
	defaultTemperature      = 0.7
	defaultTopK             = 50
	defaultTopP             = 0.7
	defaultFrequencyPenalty = 0.5
)

const defaultTimeout = 60 * time.Second

// Adapter speaks to any OpenAI-protocol-compatible HTTP endpoint.
type Adapter struct {
	config      config.BackendConfig
	client      *http.Client
	descriptors map[string]api.ModelDescriptor
}

func NewAdapter(cfg config.BackendConfig) (llm.Backend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend %s: base_url is required", cfg.Name)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	descriptors := make(map[string]api.ModelDescriptor, len(cfg.Descriptors))
	for _, d := range cfg.Descriptors {
		descriptors[d.ID] = d
	}

	return &Adapter{
		config:      cfg,
		client:      &http.Client{Timeout: timeout},
		descriptors: descriptors,
	}, nil
}

func (a *Adapter) Name() string {
	return a.config.Name
}

func (a *Adapter) Type() string {
	return "openai"
}

func (a *Adapter) DefaultModel() string {
	return a.config.DefaultModel
}

func (a *Adapter) Capabilities(modelID string) api.ModelDescriptor {
	if d, ok := a.descriptors[modelID]; ok {
		return d
	}
	return api.DefaultDescriptor(modelID)
}

// headers returns request headers. Authorization is added only when an API
// key is configured; local backends commonly run without one.
func (a *Adapter) headers() map[string]string {
	h := map[string]string{}
	if a.config.APIKey != "" {
		h["Authorization"] = "Bearer " + a.config.APIKey
	}
	return h
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func (a *Adapter) wrapUpstreamError(err error) error {
	var upstreamErr *httpclient.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return err
	}

	var apiErr upstreamErrorResponse
	if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("backend %s: status %d: %s", a.config.Name, upstreamErr.StatusCode, apiErr.Error.Message)
	}

	return fmt.Errorf("backend %s: status %d: %s", a.config.Name, upstreamErr.StatusCode, string(upstreamErr.Body))
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	reqClone := *req
	a.applyDefaults(&reqClone)

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.config.BaseURL, "/"))

	var resp api.ChatResponse
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(), &reqClone, &resp); err != nil {
		return nil, a.wrapUpstreamError(err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("backend %s: %s", a.config.Name, resp.Error.Message)
	}

	return &resp, nil
}

func (a *Adapter) applyDefaults(req *api.ChatRequest) {
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == nil {
		req.Temperature = api.Float(defaultTemperature)
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}
	if req.TopP == nil {
		req.TopP = api.Float(defaultTopP)
	}
	if req.FrequencyPenalty == nil {
		req.FrequencyPenalty = api.Float(defaultFrequencyPenalty)
	}
	if len(req.Tools) > 0 && req.ToolChoice == nil {
		req.ToolChoice = "auto"
	}
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels asks GET {base}/models. Any failure, including a malformed
// body, wraps llm.ErrUnavailable so callers can tell "could not ask" from
// "no models".
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/models", strings.TrimRight(a.config.BaseURL, "/"))

	var resp modelsResponse
	if err := httpclient.SendRequest(ctx, a.client, "GET", url, a.headers(), nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", llm.ErrUnavailable, a.config.Name, err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
