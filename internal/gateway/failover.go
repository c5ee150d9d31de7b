package gateway

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calder-ai/relay/pkg/api"
)

// Attempt records one failed backend/model call within a failover chain.
type Attempt struct {
	Backend string `json:"backend"`
	Model   string `json:"model"`
	Message string `json:"message"`
}

// ExhaustedError is raised only after every failover option failed. It
// enumerates every attempt so operators can see which layer broke.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", a.Backend, a.Model, a.Message))
	}
	return "all failover attempts exhausted: " + strings.Join(parts, "; ")
}

// failover recovers from a failed dispatch. Recovery order is deliberate:
// same-backend model swap first (a backend with one overloaded model may
// have healthy alternates), then other backends by ascending priority.
// Attempts run strictly sequentially; fan-out would multiply cost for a
// single logical request and make first-success semantics ambiguous.
func (g *Gateway) failover(ctx context.Context, req *api.ChatRequest, failed *Registration, failedModel string, firstErr error) (*api.ChatResponse, []Attempt, error) {
	attempts := []Attempt{{Backend: failed.Name, Model: failedModel, Message: firstErr.Error()}}
	tried := map[string]bool{failed.Name + "/" + failedModel: true}

	try := func(reg *Registration, modelID string) *api.ChatResponse {
		key := reg.Name + "/" + modelID
		if modelID == "" || tried[key] {
			return nil
		}
		tried[key] = true

		resp, err := g.dispatch(ctx, reg, modelID, req)
		if err != nil {
			attempts = append(attempts, Attempt{Backend: reg.Name, Model: modelID, Message: err.Error()})
			g.logger.Warn("failover attempt failed",
				zap.String("backend", reg.Name),
				zap.String("model", modelID),
				zap.Error(err))
			return nil
		}
		return resp
	}

	// (a) If the failed backend is still reachable, prefer staying on it:
	// swap to another configured model that the live list confirms.
	live, listErr := failed.Backend.ListModels(ctx)
	if listErr == nil && len(live) > 0 {
		liveSet := make(map[string]bool, len(live))
		for _, id := range live {
			liveSet[id] = true
		}

		for _, id := range failed.ModelIDs {
			if id == failedModel || id == "*" || !liveSet[id] {
				continue
			}
			if resp := try(failed, id); resp != nil {
				return resp, attempts, nil
			}
		}

		if def := failed.Backend.DefaultModel(); def != failedModel {
			if resp := try(failed, def); resp != nil {
				return resp, attempts, nil
			}
		}
	} else if listErr != nil {
		g.logger.Warn("failed backend unreachable, skipping same-backend swap",
			zap.String("backend", failed.Name),
			zap.Error(listErr))
	}

	// (b) Cross-backend: every other registration by ascending priority,
	// each with its own default model.
	for _, reg := range g.byPriority() {
		if reg.Name == failed.Name {
			continue
		}
		if resp := try(reg, reg.Backend.DefaultModel()); resp != nil {
			return resp, attempts, nil
		}
	}

	return nil, attempts, &ExhaustedError{Attempts: attempts}
}
