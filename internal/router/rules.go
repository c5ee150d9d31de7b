package router

import (
	"sort"
	"strings"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/pkg/api"
)

type rule struct {
	keywords  []string // lowercased
	minLength int      // inclusive; 0 means unset
	maxLength int      // exclusive; 0 means unset
	tier      api.Tier
	priority  int
}

// RuleMatcher evaluates keyword/length routing rules,
// highest-priority-first. It is the fast pre-filter and the fallback when
// LLM-assisted intent classification is unavailable.
type RuleMatcher struct {
	rules []rule
}

func NewRuleMatcher(cfgs []config.RuleConfig) *RuleMatcher {
	rules := make([]rule, 0, len(cfgs))
	for _, c := range cfgs {
		r := rule{
			minLength: c.MinLength,
			maxLength: c.MaxLength,
			tier:      api.ParseTier(c.Tier),
			priority:  c.Priority,
		}
		for _, kw := range c.Keywords {
			r.keywords = append(r.keywords, strings.ToLower(kw))
		}
		rules = append(rules, r)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].priority > rules[j].priority
	})

	return &RuleMatcher{rules: rules}
}

// Match returns the tier of the first rule whose length bounds are
// satisfied and at least one keyword is a case-insensitive substring of
// text.
func (m *RuleMatcher) Match(text string, length int) (api.Tier, bool) {
	lower := strings.ToLower(text)

	for _, r := range m.rules {
		if r.minLength > 0 && length < r.minLength {
			continue
		}
		if r.maxLength > 0 && length >= r.maxLength {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.tier, true
			}
		}
	}

	return 0, false
}
