package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/pkg/api"
)

func scoringConfig() config.RoutingConfig {
	return config.RoutingConfig{
		BaseScore:      10,
		LengthWeight:   2,
		CodeBlockScore: 15,
		ToolCallScore:  15,
		MultiTurnScore: 2,
	}
}

func userMsg(text string) api.ChatMessage {
	return api.ChatMessage{Role: "user", Content: api.Content{Text: text}}
}

func TestScore_BaseOnly(t *testing.T) {
	s := NewScorer(scoringConfig())

	// Short single-turn message, no code, no tool keywords.
	score := s.ScoreText("hello there, friend", 19, 1)
	assert.Equal(t, 10, score)
}

func TestScore_LengthBonusCapped(t *testing.T) {
	s := NewScorer(scoringConfig())

	// 5000 chars -> floor(5000/100)*2 = 100, capped at 20.
	long := strings.Repeat("a", 5000)
	score := s.ScoreText(long, len(long), 1)
	assert.Equal(t, 10+20, score)
}

func TestScore_CodeMarker(t *testing.T) {
	s := NewScorer(scoringConfig())

	score := s.ScoreText("please fix this: ```go\nfunc main() {}\n```", 41, 1)
	assert.Equal(t, 10+15, score)
}

func TestScore_MultiTurnCapped(t *testing.T) {
	s := NewScorer(scoringConfig())

	// 20 turns -> 20*2 = 40, capped at 10.
	score := s.ScoreText("ok", 2, 20)
	assert.Equal(t, 10+10, score)
}

func TestScore_ClampInvariant(t *testing.T) {
	cfg := scoringConfig()
	cfg.BaseScore = 95
	s := NewScorer(cfg)

	long := strings.Repeat("`tool` ", 2000)
	score := s.ScoreText(long, len(long), 50)
	assert.LessOrEqual(t, score, 100)
	assert.GreaterOrEqual(t, score, 0)

	cfg.BaseScore = -500
	s = NewScorer(cfg)
	score = s.ScoreText("x", 1, 1)
	assert.GreaterOrEqual(t, score, 0)
}

func TestScore_FromMessages(t *testing.T) {
	s := NewScorer(scoringConfig())

	msgs := []api.ChatMessage{
		userMsg("first question"),
		{Role: "assistant", Content: api.Content{Text: "an answer"}},
		userMsg("follow-up"),
	}

	// 3 turns -> multi-turn bonus of min(10, 3*2) = 6.
	score := s.Score(msgs)
	assert.Equal(t, 10+6, score)
}

func TestTierForScore_Boundaries(t *testing.T) {
	cases := []struct {
		score int
		tier  api.Tier
	}{
		{0, api.TierFast},
		{19, api.TierFast},
		{20, api.TierLow},
		{39, api.TierLow},
		{40, api.TierMedium},
		{59, api.TierMedium},
		{60, api.TierHigh},
		{79, api.TierHigh},
		{80, api.TierUltra},
		{100, api.TierUltra},
		{250, api.TierUltra},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.tier, api.TierForScore(tc.score), "score %d", tc.score)
	}
}
