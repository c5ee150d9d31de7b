package router

import (
	"strings"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/pkg/api"
)

// toolKeywords hint that the conversation is driving tool use. The bonus
// they add is configurable; the list itself is not scoring policy, just
// detection.
var toolKeywords = []string{
	"tool", "function call", "execute", "run the", "search the web", "browse",
}

// Scorer maps a message set to a 0-100 complexity score. Every coefficient
// comes from RoutingConfig so operators can retune routing without code
// changes.
type Scorer struct {
	cfg config.RoutingConfig
}

func NewScorer(cfg config.RoutingConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the complexity of a conversation. The result is always
// clamped to [0,100].
func (s *Scorer) Score(messages []api.ChatMessage) int {
	raw := FlattenText(messages)
	return s.ScoreText(raw, len(raw), len(messages))
}

// ScoreText is the pure scoring function over pre-extracted inputs.
func (s *Scorer) ScoreText(rawText string, length, turnCount int) int {
	score := s.cfg.BaseScore

	lengthBonus := (length / 100) * s.cfg.LengthWeight
	if lengthBonus > 20 {
		lengthBonus = 20
	}
	score += lengthBonus

	lower := strings.ToLower(rawText)

	if strings.Contains(rawText, "```") || strings.Contains(rawText, "`") {
		score += s.cfg.CodeBlockScore
	}

	for _, kw := range toolKeywords {
		if strings.Contains(lower, kw) {
			score += s.cfg.ToolCallScore
			break
		}
	}

	if turnCount > 1 {
		turnBonus := turnCount * s.cfg.MultiTurnScore
		if turnBonus > 10 {
			turnBonus = 10
		}
		score += turnBonus
	}

	// Hard invariant: the score never leaves [0,100].
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// FlattenText concatenates the textual content of every message, including
// text parts of multimodal content.
func FlattenText(messages []api.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Content.Text != "" {
			b.WriteString(m.Content.Text)
			b.WriteByte('\n')
		}
		for _, p := range m.Content.Parts {
			if p.Text != "" {
				b.WriteString(p.Text)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
