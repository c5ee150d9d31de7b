package llm

import (
	"context"
	"errors"

	"github.com/calder-ai/relay/pkg/api"
)

// ErrUnavailable signals that a backend could not be asked for its model
// list at all. Callers must treat this differently from an empty list: an
// unreachable backend is skipped during same-backend failover, while a
// reachable one with no alternates is not.
var ErrUnavailable = errors.New("backend unavailable")

// Backend is the capability contract every registered chat-completion
// provider implements. One concrete implementation speaks the
// OpenAI-compatible HTTP protocol; tests supply fakes.
type Backend interface {
	Name() string
	Type() string

	// Chat performs a single blocking completion call.
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)

	// DefaultModel returns the model used when none is specified.
	DefaultModel() string

	// ListModels returns the ids the backend currently serves. A failure
	// to ask wraps ErrUnavailable; it never masquerades as an empty list.
	ListModels(ctx context.Context) ([]string, error)

	// Capabilities returns the descriptor for a model id. Unknown models
	// synthesize the default descriptor rather than erroring.
	Capabilities(modelID string) api.ModelDescriptor
}
