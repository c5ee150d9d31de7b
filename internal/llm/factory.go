package llm

import (
	"fmt"
	"sync"

	"github.com/calder-ai/relay/internal/config"
)

// Factory builds a Backend from its configuration.
type Factory func(cfg config.BackendConfig) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a backend factory available to the system.
// 'backendType' is the key (e.g., "openai").
func Register(backendType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[backendType]; exists {
		panic(fmt.Sprintf("backend factory %s already registered", backendType))
	}
	factories[backendType] = f
}

// Get retrieves a factory to create a backend of a specific type.
func Get(backendType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[backendType]
	if !ok {
		return nil, fmt.Errorf("backend factory not found for type: %s", backendType)
	}
	return f, nil
}
