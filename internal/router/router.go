package router

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/pkg/api"
)

// Candidate is one (backend, model) pair the router may pick.
type Candidate struct {
	Backend    string
	Descriptor api.ModelDescriptor
}

// Registry is the router's read-only view of the gateway's registration
// table. Candidates iterate in registration order; ties between equally
// distant tiers resolve to the first encountered, which is accepted
// nondeterminism across backends.
type Registry interface {
	Candidates() []Candidate
	DefaultRoute() (backend, model string, ok bool)
}

// Router picks a (backend, model) route for a request by combining media
// inspection, the complexity scorer and the rule matcher. Intent
// classification sits on top, in intent.go.
type Router struct {
	registry Registry
	scorer   *Scorer
	rules    *RuleMatcher
	cfg      config.RoutingConfig
	roles    config.ModelRoles
	logger   *zap.Logger
}

func New(registry Registry, cfg config.RoutingConfig, roles config.ModelRoles, logger *zap.Logger) *Router {
	return &Router{
		registry: registry,
		scorer:   NewScorer(cfg),
		rules:    NewRuleMatcher(cfg.Rules),
		cfg:      cfg,
		roles:    roles,
		logger:   logger,
	}
}

// Route resolves a routing request. It never fails: with no candidates it
// degrades to pass-through of the requested model id, leaving resolution
// against the registration table to the gateway.
func (r *Router) Route(req api.RoutingRequest) api.RouteResult {
	// Fixed mode returns the configured default chat model verbatim.
	if req.Mode == api.RouteFixed || (!r.cfg.Auto && req.Mode != api.RoutePerformanceFirst) {
		return r.fixedRoute(req)
	}

	candidates := r.registry.Candidates()
	if len(candidates) == 0 {
		return api.RouteResult{
			Model:      req.RequestedModel,
			Descriptor: api.DefaultDescriptor(req.RequestedModel),
			Reason:     "no routing candidates; pass-through",
		}
	}

	score := r.scorer.Score(req.Messages)
	target := api.TierForScore(score)
	perfFirst := req.Mode == api.RoutePerformanceFirst || r.cfg.PerformanceFirst

	// Media restricts candidates to vision models; an empty vision set
	// falls through to the full set.
	if hasImage(req) {
		vision := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Descriptor.Vision {
				vision = append(vision, c)
			}
		}
		if len(vision) > 0 {
			picked := nearest(vision, target, perfFirst)
			return result(picked, score, fmt.Sprintf("vision route (score=%d, target=%s)", score, target))
		}
	}

	if perfFirst {
		picked := highestTier(candidates)
		return result(picked, score, "performance-first")
	}

	// Exact tier match wins; iteration is registration order.
	for _, c := range candidates {
		if c.Descriptor.Tier == target {
			return result(c, score, fmt.Sprintf("complexity route (score=%d, tier=%s)", score, target))
		}
	}

	picked := nearest(candidates, target, perfFirst)
	return result(picked, score, fmt.Sprintf("nearest tier to %s (score=%d)", target, score))
}

func (r *Router) fixedRoute(req api.RoutingRequest) api.RouteResult {
	backend, model := SplitRef(r.roles.Chat)
	if model == "" {
		if b, m, ok := r.registry.DefaultRoute(); ok {
			backend, model = b, m
		} else {
			model = req.RequestedModel
		}
	}

	descriptor := api.DefaultDescriptor(model)
	for _, c := range r.registry.Candidates() {
		if c.Descriptor.ID == model && (backend == "" || c.Backend == backend) {
			descriptor = c.Descriptor
			if backend == "" {
				backend = c.Backend
			}
			break
		}
	}

	return api.RouteResult{
		Backend:    backend,
		Model:      model,
		Descriptor: descriptor,
		Reason:     "fixed",
	}
}

func result(c Candidate, score int, reason string) api.RouteResult {
	return api.RouteResult{
		Backend:    c.Backend,
		Model:      c.Descriptor.ID,
		Descriptor: c.Descriptor,
		Score:      score,
		Reason:     reason,
	}
}

// nearest picks the candidate whose tier is closest to target. Speed-first
// (the default) only degrades downward, falling back to the globally lowest
// tier; performance-first only upgrades, falling back to the globally
// highest.
func nearest(candidates []Candidate, target api.Tier, perfFirst bool) Candidate {
	var best *Candidate
	bestDiff := 0

	for i := range candidates {
		diff := int(candidates[i].Descriptor.Tier) - int(target)
		if diff == 0 {
			return candidates[i]
		}
		if perfFirst {
			if diff < 0 {
				continue
			}
		} else if diff > 0 {
			continue
		}
		abs := diff
		if abs < 0 {
			abs = -abs
		}
		if best == nil || abs < bestDiff {
			best = &candidates[i]
			bestDiff = abs
		}
	}

	if best != nil {
		return *best
	}
	if perfFirst {
		return highestTier(candidates)
	}
	return lowestTier(candidates)
}

func highestTier(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Descriptor.Tier > best.Descriptor.Tier {
			best = c
		}
	}
	return best
}

func lowestTier(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Descriptor.Tier < best.Descriptor.Tier {
			best = c
		}
	}
	return best
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// hasImage reports whether the request references an image, by media refs
// or by image parts embedded in the messages.
func hasImage(req api.RoutingRequest) bool {
	for _, ref := range req.Media {
		if isImageRef(ref) {
			return true
		}
	}
	for _, m := range req.Messages {
		for _, p := range m.Content.Parts {
			if p.ImageURL != nil && p.ImageURL.URL != "" {
				return true
			}
		}
	}
	return false
}

func isImageRef(ref string) bool {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:image/") || strings.Contains(lower, "image/") {
		return true
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// SplitRef parses a `backend/model` reference. A bare ref has no backend.
func SplitRef(ref string) (backend, model string) {
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}
