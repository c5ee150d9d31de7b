package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/analytics"
	"github.com/calder-ai/relay/internal/llm"
	"github.com/calder-ai/relay/internal/router"
	"github.com/calder-ai/relay/internal/store/model"
	"github.com/calder-ai/relay/pkg/api"
)

var (
	// ErrNoBackends is returned when chat is called before any backend
	// was registered.
	ErrNoBackends = errors.New("no backends registered")

	// ErrBackendNotRegistered is a caller error: an explicitly named
	// backend does not exist. It is never retried.
	ErrBackendNotRegistered = errors.New("backend not registered")
)

// Service is what the HTTP surface consumes.
type Service interface {
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	Preview(ctx context.Context, req api.RoutingRequest) api.RouteResult
	ListModels() []ModelInfo
}

// Registration binds a named backend to its configured model list and
// failover priority. The table is built once at startup and never mutated
// afterward; concurrent readers need no synchronization.
type Registration struct {
	Name     string
	Backend  llm.Backend
	ModelIDs []string // may contain the wildcard "*"
	Priority int      // lower is tried first on cross-backend failover
}

type Gateway struct {
	logger   *zap.Logger
	regs     []*Registration
	byName   map[string]*Registration
	router   *router.Router
	intent   *router.IntentClassifier
	ingestor analytics.Ingestor
}

func New(logger *zap.Logger) *Gateway {
	return &Gateway{
		logger: logger,
		byName: make(map[string]*Registration),
	}
}

// Register adds a backend to the table. Names must be unique. Call only
// during startup, before the first chat.
func (g *Gateway) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("registration requires a name")
	}
	if reg.Backend == nil {
		return fmt.Errorf("registration %q requires a backend", reg.Name)
	}
	if _, exists := g.byName[reg.Name]; exists {
		return fmt.Errorf("backend %q already registered", reg.Name)
	}

	r := reg
	g.regs = append(g.regs, &r)
	g.byName[reg.Name] = &r
	return nil
}

// SetRouter wires the router after construction; the router needs the
// gateway as its candidate registry, so the two are tied together here.
func (g *Gateway) SetRouter(r *router.Router) {
	g.router = r
}

// SetIntent installs the optional intent classifier.
func (g *Gateway) SetIntent(c *router.IntentClassifier) {
	g.intent = c
}

// SetIngestor installs the optional request-audit ingestor.
func (g *Gateway) SetIngestor(i analytics.Ingestor) {
	g.ingestor = i
}

// Lookup returns a registered backend and a model id for a `backend/model`
// ref, used to resolve designated role models (e.g. the intent model).
func (g *Gateway) Lookup(ref string) (llm.Backend, string, bool) {
	backend, modelID := router.SplitRef(ref)
	if backend == "" || modelID == "" {
		return nil, "", false
	}
	reg, ok := g.byName[backend]
	if !ok {
		return nil, "", false
	}
	return reg.Backend, modelID, true
}

// Candidates implements router.Registry: every configured model of every
// registration, in registration order, wildcard excluded.
func (g *Gateway) Candidates() []router.Candidate {
	var out []router.Candidate
	for _, reg := range g.regs {
		for _, id := range reg.ModelIDs {
			if id == "*" {
				continue
			}
			out = append(out, router.Candidate{
				Backend:    reg.Name,
				Descriptor: reg.Backend.Capabilities(id),
			})
		}
	}
	return out
}

// DefaultRoute implements router.Registry: the first-priority backend and
// its default model.
func (g *Gateway) DefaultRoute() (string, string, bool) {
	reg := g.defaultRegistration()
	if reg == nil {
		return "", "", false
	}
	return reg.Name, reg.Backend.DefaultModel(), true
}

func (g *Gateway) defaultRegistration() *Registration {
	var best *Registration
	for _, reg := range g.regs {
		if best == nil || reg.Priority < best.Priority {
			best = reg
		}
	}
	return best
}

func (g *Gateway) byPriority() []*Registration {
	sorted := make([]*Registration, len(g.regs))
	copy(sorted, g.regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// ParseModel resolves a model reference to (backendName, modelID).
// `b/m` splits directly; a bare id searches registrations for a model list
// containing it (or the wildcard); anything still unresolved goes to the
// default backend unchanged.
func (g *Gateway) ParseModel(ref string) (string, string, error) {
	if i := strings.Index(ref, "/"); i >= 0 {
		backend, modelID := ref[:i], ref[i+1:]
		if _, ok := g.byName[backend]; !ok {
			return "", "", fmt.Errorf("%w: %s", ErrBackendNotRegistered, backend)
		}
		return backend, modelID, nil
	}

	for _, reg := range g.regs {
		for _, id := range reg.ModelIDs {
			if id == ref || id == "*" {
				return reg.Name, ref, nil
			}
		}
	}

	reg := g.defaultRegistration()
	if reg == nil {
		return "", "", ErrNoBackends
	}
	return reg.Name, ref, nil
}

// Preview resolves a route without dispatching, for audit tooling.
func (g *Gateway) Preview(ctx context.Context, req api.RoutingRequest) api.RouteResult {
	return g.router.RouteWithIntent(ctx, g.intent, req)
}

// ModelInfo is one registered model in the aggregated catalog.
type ModelInfo struct {
	Backend    string              `json:"backend"`
	Descriptor api.ModelDescriptor `json:"descriptor"`
	Default    bool                `json:"default"`
}

// ListModels returns the aggregated catalog of all registered models.
func (g *Gateway) ListModels() []ModelInfo {
	var out []ModelInfo
	for _, reg := range g.regs {
		def := reg.Backend.DefaultModel()
		for _, id := range reg.ModelIDs {
			if id == "*" {
				continue
			}
			out = append(out, ModelInfo{
				Backend:    reg.Name,
				Descriptor: reg.Backend.Capabilities(id),
				Default:    id == def,
			})
		}
	}
	return out
}

// Chat resolves the target backend/model, dispatches, and recovers through
// the failover chain on failure. The returned response always carries
// used_backend/used_model/used_tier stamps.
func (g *Gateway) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	if len(g.regs) == 0 {
		return nil, ErrNoBackends
	}

	start := time.Now()

	route, err := g.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reg := g.byName[route.Backend]
	if reg == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotRegistered, route.Backend)
	}

	resp, dispatchErr := g.dispatch(ctx, reg, route.Model, req)
	attempts := 1
	if dispatchErr != nil {
		g.logger.Warn("dispatch failed, entering failover",
			zap.String("backend", reg.Name),
			zap.String("model", route.Model),
			zap.Error(dispatchErr))

		var tried []Attempt
		resp, tried, err = g.failover(ctx, req, reg, route.Model, dispatchErr)
		attempts += len(tried)
		if err != nil {
			g.ingest(req, route, nil, attempts, start)
			return nil, err
		}
	}

	g.ingest(req, route, resp, attempts, start)
	return resp, nil
}

// resolve picks the route: the router runs only when the caller omitted an
// explicit model id; otherwise the id is parsed as-is.
func (g *Gateway) resolve(ctx context.Context, req *api.ChatRequest) (api.RouteResult, error) {
	if req.Model == "" && g.router != nil {
		route := g.router.RouteWithIntent(ctx, g.intent, api.RoutingRequest{
			Messages: req.Messages,
		})

		// The router only sees enumerated candidates. A registration whose
		// model list is just the wildcard exposes none, so a valid route can
		// come back unpinned; resolve it against the registration table
		// before giving up.
		if route.Backend == "" {
			backend, modelID, err := g.ParseModel(route.Model)
			if err != nil {
				return api.RouteResult{}, err
			}
			route.Backend = backend
			route.Model = modelID
			route.Reason = "default route"
		}
		if route.Model == "" {
			if reg := g.byName[route.Backend]; reg != nil {
				route.Model = reg.Backend.DefaultModel()
			}
		}

		g.logger.Debug("auto-routed request",
			zap.String("backend", route.Backend),
			zap.String("model", route.Model),
			zap.Int("score", route.Score),
			zap.String("reason", route.Reason))
		return route, nil
	}

	backend, modelID, err := g.ParseModel(req.Model)
	if err != nil {
		return api.RouteResult{}, err
	}
	return api.RouteResult{
		Backend: backend,
		Model:   modelID,
		Reason:  "explicit",
	}, nil
}

// dispatch performs one backend call and stamps the response on success.
func (g *Gateway) dispatch(ctx context.Context, reg *Registration, modelID string, req *api.ChatRequest) (*api.ChatResponse, error) {
	reqClone := *req
	reqClone.Model = modelID

	resp, err := reg.Backend.Chat(ctx, &reqClone)
	if err != nil {
		return nil, err
	}

	resp.UsedBackend = reg.Name
	resp.UsedModel = modelID
	resp.UsedTier = reg.Backend.Capabilities(modelID).Tier.String()
	return resp, nil
}

func (g *Gateway) ingest(req *api.ChatRequest, route api.RouteResult, resp *api.ChatResponse, attempts int, start time.Time) {
	if g.ingestor == nil {
		return
	}

	entry := &model.RequestLog{
		ID:             uuid.NewString(),
		RequestedModel: req.Model,
		RoutedBackend:  route.Backend,
		RoutedModel:    route.Model,
		RouteReason:    route.Reason,
		Score:          route.Score,
		Attempts:       attempts,
		LatencyMS:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if resp != nil {
		entry.UsedBackend = resp.UsedBackend
		entry.UsedModel = resp.UsedModel
		entry.UsedTier = resp.UsedTier
		entry.Succeeded = true
		if resp.Usage != nil {
			entry.InputTokens = resp.Usage.PromptTokens
			entry.OutputTokens = resp.Usage.CompletionTokens
		}
	}

	g.ingestor.Log(entry)
}
