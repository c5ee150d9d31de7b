package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-ai/relay/pkg/api"
)

// Integration tests against a locally running relay. They skip themselves
// when no server is listening, so `go test ./...` stays green without one.
const (
	baseURL     = "http://localhost:8080/v1"
	healthURL   = "http://localhost:8080/health"
	targetModel = "local/llama3"
)

func requireServer(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(healthURL)
	if err != nil {
		t.Skipf("no relay running at %s", healthURL)
	}
	_ = resp.Body.Close()
}

func makeRequest(t *testing.T, method, url string, payload interface{}, target interface{}) int {
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil {
		err = json.NewDecoder(resp.Body).Decode(target)
		require.NoError(t, err, "Failed to decode response JSON")
	}

	return resp.StatusCode
}

func TestHealthCheck(t *testing.T) {
	requireServer(t)

	resp, err := http.Get(healthURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListModels(t *testing.T) {
	requireServer(t)

	var result struct {
		Data []interface{} `json:"data"`
	}

	code := makeRequest(t, "GET", baseURL+"/models", nil, &result)
	if code == http.StatusUnauthorized {
		t.Skip("server requires an API key")
	}

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, result.Data, "at least one backend should be registered")
}

func TestChatCompletion_Explicit(t *testing.T) {
	requireServer(t)

	req := api.ChatRequest{
		Model:    targetModel,
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "Say hi"}}},
	}

	var resp api.ChatResponse
	code := makeRequest(t, "POST", baseURL+"/chat/completions", req, &resp)
	if code == http.StatusUnauthorized {
		t.Skip("server requires an API key")
	}

	assert.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, resp.Choices)
	assert.NotEmpty(t, resp.UsedBackend, "responses must carry the serving backend")
	assert.NotEmpty(t, resp.UsedModel)
}

func TestChatCompletion_AutoRouted(t *testing.T) {
	requireServer(t)

	// No model id: the router decides.
	req := api.ChatRequest{
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "Hello"}}},
	}

	var resp api.ChatResponse
	code := makeRequest(t, "POST", baseURL+"/chat/completions", req, &resp)
	if code == http.StatusUnauthorized {
		t.Skip("server requires an API key")
	}

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.UsedModel)
}

func TestRoutePreview(t *testing.T) {
	requireServer(t)

	payload := map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "user", "content": "summarize this short note"},
		},
	}

	var result api.RouteResult
	code := makeRequest(t, "POST", baseURL+"/routes/preview", payload, &result)
	if code == http.StatusUnauthorized {
		t.Skip("server requires an API key")
	}

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, result.Model)
	assert.NotEmpty(t, result.Reason)
}

func TestValidationError(t *testing.T) {
	requireServer(t)

	payload := map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "bad_role", "content": "hello"},
		},
	}

	var errResp map[string]interface{}
	code := makeRequest(t, "POST", baseURL+"/chat/completions", payload, &errResp)
	if code == http.StatusUnauthorized {
		t.Skip("server requires an API key")
	}

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation Error", errResp["title"])

	errors, ok := errResp["errors"].(map[string]interface{})
	require.True(t, ok, "problem body should carry the 'errors' map")
	assert.Contains(t, errors, "messages[0].role")
}
