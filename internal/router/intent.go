package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/llm"
	"github.com/calder-ai/relay/pkg/api"
)

const intentPrompt = `You are a model dispatcher. Given the conversation below, pick the single best model from the candidate list.

Candidates:
%s

Conversation:
%s

Respond with a JSON object only: {"model": "<one candidate id>", "reason": "<short reason>"}`

// IntentClassifier asks a designated intent model to suggest a route. It
// is deliberately unreliable-by-contract: every failure mode (backend
// unreachable, malformed JSON, unlisted model) reports ok=false and the
// caller degrades to rule matching, then to the pure complexity route.
type IntentClassifier struct {
	backend llm.Backend
	model   string
	logger  *zap.Logger
}

func NewIntentClassifier(backend llm.Backend, model string, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{backend: backend, model: model, logger: logger}
}

type intentVerdict struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// Suggest returns a candidate picked by the intent model, or ok=false.
func (c *IntentClassifier) Suggest(ctx context.Context, candidates []Candidate, messages []api.ChatMessage) (Candidate, string, bool) {
	if c == nil || c.backend == nil || len(candidates) == 0 {
		return Candidate{}, "", false
	}

	listing := make([]string, 0, len(candidates))
	offered := make(map[string]Candidate, len(candidates))
	for _, cand := range candidates {
		ref := cand.Backend + "/" + cand.Descriptor.ID
		listing = append(listing, fmt.Sprintf("- %s (tier=%s, vision=%t, tools=%t)",
			ref, cand.Descriptor.Tier, cand.Descriptor.Vision, cand.Descriptor.ToolUse))
		offered[ref] = cand
		offered[cand.Descriptor.ID] = cand
	}

	conversation := FlattenText(messages)
	if len(conversation) > 2000 {
		conversation = conversation[:2000]
	}

	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.ChatMessage{
			{Role: "user", Content: api.Content{Text: fmt.Sprintf(intentPrompt, strings.Join(listing, "\n"), conversation)}},
		},
		MaxTokens:   256,
		Temperature: api.Float(0.1),
	}

	resp, err := c.backend.Chat(ctx, req)
	if err != nil {
		c.logger.Debug("intent classification unavailable", zap.Error(err))
		return Candidate{}, "", false
	}

	verdict, err := parseVerdict(resp.Text())
	if err != nil {
		c.logger.Debug("intent verdict unparsable", zap.Error(err))
		return Candidate{}, "", false
	}

	cand, ok := offered[verdict.Model]
	if !ok {
		c.logger.Debug("intent model named an unlisted candidate", zap.String("model", verdict.Model))
		return Candidate{}, "", false
	}

	return cand, verdict.Reason, true
}

// parseVerdict extracts the first {...} block from the model output and
// decodes it, repairing malformed JSON before giving up.
func parseVerdict(text string) (*intentVerdict, error) {
	block, err := firstJSONBlock(text)
	if err != nil {
		return nil, err
	}

	var v intentVerdict
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(block)
		if repairErr != nil {
			return nil, fmt.Errorf("verdict not valid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, fmt.Errorf("repaired verdict still invalid: %w", err)
		}
	}

	if v.Model == "" {
		return nil, fmt.Errorf("verdict missing model field")
	}
	return &v, nil
}

func firstJSONBlock(text string) (string, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	// Unbalanced braces: hand the tail to the repairer.
	return text[start:], nil
}

// RouteWithIntent runs the full three-tier decision: LLM opinion, then
// keyword rule, then the score-derived bucket. It never returns an error,
// only a route.
func (r *Router) RouteWithIntent(ctx context.Context, intent *IntentClassifier, req api.RoutingRequest) api.RouteResult {
	if req.Mode == api.RouteFixed || (!r.cfg.Auto && req.Mode != api.RoutePerformanceFirst) {
		return r.Route(req)
	}

	candidates := r.registry.Candidates()
	if len(candidates) == 0 {
		return r.Route(req)
	}

	// Intent classification sees only vision models when an image is
	// present and any exist.
	offered := candidates
	if hasImage(req) {
		vision := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Descriptor.Vision {
				vision = append(vision, c)
			}
		}
		if len(vision) > 0 {
			offered = vision
		}
	}

	if cand, reason, ok := intent.Suggest(ctx, offered, req.Messages); ok {
		score := r.scorer.Score(req.Messages)
		return result(cand, score, "intent: "+reason)
	}

	text := FlattenText(req.Messages)
	if tier, ok := r.rules.Match(text, len(text)); ok {
		score := r.scorer.Score(req.Messages)
		perfFirst := req.Mode == api.RoutePerformanceFirst || r.cfg.PerformanceFirst
		picked := nearest(offered, tier, perfFirst)
		return result(picked, score, fmt.Sprintf("rule match (tier=%s)", tier))
	}

	return r.Route(req)
}
