package api

import "encoding/json"

// Tier is the ordered performance/cost class of a model.
// The total order fast < low < medium < high < ultra is load-bearing:
// nearest-tier selection does rank arithmetic on it.
type Tier int

const (
	TierFast Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierUltra
)

var tierNames = [...]string{"fast", "low", "medium", "high", "ultra"}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// ParseTier maps a config string to a Tier. Unknown values default to
// medium, the safe middle of the order.
func ParseTier(s string) Tier {
	for i, name := range tierNames {
		if name == s {
			return Tier(i)
		}
	}
	return TierMedium
}

// MarshalJSON implements json.Marshaler.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var i int
		if err2 := json.Unmarshal(data, &i); err2 != nil {
			return err
		}
		*t = Tier(i)
		return nil
	}
	*t = ParseTier(s)
	return nil
}

// TierForScore buckets a complexity score into a Tier. Boundaries are
// fixed; only the score itself is configurable.
func TierForScore(score int) Tier {
	switch {
	case score < 20:
		return TierFast
	case score < 40:
		return TierLow
	case score < 60:
		return TierMedium
	case score < 80:
		return TierHigh
	default:
		return TierUltra
	}
}

// ModelDescriptor captures the static capabilities of a single model.
type ModelDescriptor struct {
	ID        string `mapstructure:"id" json:"id"`
	Vision    bool   `mapstructure:"vision" json:"vision"`
	Reasoning bool   `mapstructure:"reasoning" json:"reasoning"`
	ToolUse   bool   `mapstructure:"tool_use" json:"tool_use"`
	Tier      Tier   `mapstructure:"-" json:"tier"`

	// TierName is the raw config value; resolved into Tier at load time.
	TierName string `mapstructure:"tier" json:"-"`
}

// DefaultDescriptor synthesizes the descriptor used for models nobody
// described: tool use on, everything else conservative.
func DefaultDescriptor(modelID string) ModelDescriptor {
	return ModelDescriptor{
		ID:      modelID,
		ToolUse: true,
		Tier:    TierMedium,
	}
}

// RouteMode selects the routing strategy for a request.
type RouteMode string

const (
	RouteFixed            RouteMode = "fixed"
	RouteAuto             RouteMode = "auto"
	RoutePerformanceFirst RouteMode = "performance_first"
)

// RoutingRequest is the input to a routing decision.
type RoutingRequest struct {
	Messages []ChatMessage `json:"messages"`
	Media    []string      `json:"media,omitempty"`
	Mode     RouteMode     `json:"mode,omitempty"`

	// RequestedModel is returned verbatim when routing degrades to
	// pass-through (no backend registered).
	RequestedModel string `json:"requested_model,omitempty"`
}

// RouteResult is the resolved (backend, model) pair plus the audit trail.
type RouteResult struct {
	Backend    string          `json:"backend"`
	Model      string          `json:"model"`
	Descriptor ModelDescriptor `json:"descriptor"`
	Score      int             `json:"score"`
	Reason     string          `json:"reason"`
}

// Ref renders the route as a `backend/model` reference.
func (r RouteResult) Ref() string {
	if r.Backend == "" {
		return r.Model
	}
	return r.Backend + "/" + r.Model
}
