package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/pkg/api"
)

type fakeIntentBackend struct {
	reply string
	err   error

	lastRequest *api.ChatRequest
}

func (f *fakeIntentBackend) Name() string { return "fake" }

func (f *fakeIntentBackend) Type() string { return "fake" }

func (f *fakeIntentBackend) DefaultModel() string { return "fake-model" }

func (f *fakeIntentBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeIntentBackend) Capabilities(modelID string) api.ModelDescriptor {
	return api.DefaultDescriptor(modelID)
}

func (f *fakeIntentBackend) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &api.ChatResponse{
		Choices: []api.Choice{{
			Message: &api.ChatMessage{Role: "assistant", Content: api.Content{Text: f.reply}},
		}},
	}, nil
}

func intentCandidates() []Candidate {
	return []Candidate{
		cand("local", "small", api.TierFast, false),
		cand("cloud", "big", api.TierUltra, false),
	}
}

func TestSuggest_AcceptsListedCandidateByRef(t *testing.T) {
	backend := &fakeIntentBackend{reply: `{"model": "cloud/big", "reason": "needs deep reasoning"}`}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	got, reason, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("prove this theorem")})

	require.True(t, ok)
	assert.Equal(t, "cloud", got.Backend)
	assert.Equal(t, "big", got.Descriptor.ID)
	assert.Equal(t, "needs deep reasoning", reason)
	assert.Equal(t, "intent-model", backend.lastRequest.Model)
}

func TestSuggest_AcceptsBareModelID(t *testing.T) {
	backend := &fakeIntentBackend{reply: `{"model": "small", "reason": "simple"}`}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	got, _, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("hi")})

	require.True(t, ok)
	assert.Equal(t, "local", got.Backend)
	assert.Equal(t, "small", got.Descriptor.ID)
}

func TestSuggest_RejectsUnlistedModel(t *testing.T) {
	backend := &fakeIntentBackend{reply: `{"model": "gpt-99", "reason": "best"}`}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	_, _, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("hi")})

	assert.False(t, ok)
}

func TestSuggest_BackendErrorDegrades(t *testing.T) {
	backend := &fakeIntentBackend{err: errors.New("connection refused")}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	_, _, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("hi")})

	assert.False(t, ok)
}

func TestSuggest_RepairsMalformedJSON(t *testing.T) {
	// Single quotes and a trailing comma; the repairer normalizes both.
	backend := &fakeIntentBackend{reply: "Sure! {'model': 'cloud/big', 'reason': 'hard task',}"}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	got, _, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("hard task")})

	require.True(t, ok)
	assert.Equal(t, "big", got.Descriptor.ID)
}

func TestSuggest_ExtractsJSONFromProse(t *testing.T) {
	backend := &fakeIntentBackend{
		reply: "Based on the conversation I would pick:\n\n{\"model\": \"small\", \"reason\": \"short greeting\"}\n\nLet me know.",
	}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	got, _, ok := c.Suggest(context.Background(), intentCandidates(),
		[]api.ChatMessage{userMsg("hello")})

	require.True(t, ok)
	assert.Equal(t, "small", got.Descriptor.ID)
}

func TestSuggest_NilClassifierIsSafe(t *testing.T) {
	var c *IntentClassifier

	_, _, ok := c.Suggest(context.Background(), intentCandidates(), nil)
	assert.False(t, ok)
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		model   string
		wantErr bool
	}{
		{"clean", `{"model":"a","reason":"r"}`, "a", false},
		{"prose wrapped", `pick {"model":"b"} done`, "b", false},
		{"no json", "I cannot decide", "", true},
		{"missing model", `{"reason":"r"}`, "", true},
		{"unbalanced braces repaired", `{"model":"c","reason":"r"`, "c", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := parseVerdict(tc.text)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.model, v.Model)
		})
	}
}

func TestRouteWithIntent_PrefersIntentVerdict(t *testing.T) {
	reg := &fakeRegistry{candidates: intentCandidates()}
	r := newTestRouter(reg, autoCfg(), config.ModelRoles{})

	backend := &fakeIntentBackend{reply: `{"model": "cloud/big", "reason": "complex"}`}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	res := r.RouteWithIntent(context.Background(), c, api.RoutingRequest{
		Messages: []api.ChatMessage{userMsg("design a distributed system")},
	})

	assert.Equal(t, "cloud", res.Backend)
	assert.Equal(t, "big", res.Model)
	assert.Contains(t, res.Reason, "intent")
}

func TestRouteWithIntent_FallsBackToRules(t *testing.T) {
	cfg := autoCfg()
	cfg.Rules = []config.RuleConfig{
		{Keywords: []string{"architecture"}, Tier: "ultra", Priority: 5},
	}
	reg := &fakeRegistry{candidates: intentCandidates()}
	r := newTestRouter(reg, cfg, config.ModelRoles{})

	backend := &fakeIntentBackend{err: errors.New("down")}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	res := r.RouteWithIntent(context.Background(), c, api.RoutingRequest{
		Messages: []api.ChatMessage{userMsg("sketch the architecture for me")},
	})

	assert.Equal(t, "big", res.Model)
	assert.Contains(t, res.Reason, "rule match")
}

func TestRouteWithIntent_FallsBackToScore(t *testing.T) {
	reg := &fakeRegistry{candidates: intentCandidates()}
	r := newTestRouter(reg, autoCfg(), config.ModelRoles{})

	backend := &fakeIntentBackend{err: errors.New("down")}
	c := NewIntentClassifier(backend, "intent-model", zap.NewNop())

	// No rules configured; short message lands in fast.
	res := r.RouteWithIntent(context.Background(), c, api.RoutingRequest{
		Messages: []api.ChatMessage{userMsg("hi")},
	})

	assert.Equal(t, "small", res.Model)
}
