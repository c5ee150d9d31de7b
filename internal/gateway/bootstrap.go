package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/cli"
	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/internal/llm"
)

// BootstrapBackends builds and registers every enabled backend from
// configuration. Unreachable backends are still registered, since failover
// handles them at request time, but they are flagged in the startup log.
func BootstrapBackends(ctx context.Context, g *Gateway, backends []config.BackendConfig, log *zap.Logger) int {
	registered := 0
	validate := validator.New()

	for _, bCfg := range backends {
		if !bCfg.Enabled {
			continue
		}

		if err := validate.Struct(&bCfg); err != nil {
			log.Warn(fmt.Sprintf("%s %s skipping backend: invalid configuration",
				cli.WarningSign(),
				cli.Style(bCfg.Name, cli.Bold)),
				zap.Error(err))
			continue
		}

		backendType := bCfg.Type
		if backendType == "" {
			backendType = "openai"
		}

		factory, err := llm.Get(backendType)
		if err != nil {
			log.Error("unknown backend type", zap.String("type", backendType))
			continue
		}

		backend, err := factory(bCfg)
		if err != nil {
			log.Error("failed to initialize backend",
				zap.String("name", bCfg.Name),
				zap.Error(err))
			continue
		}

		// Startup reachability probe; registration proceeds either way.
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if _, err := backend.ListModels(probeCtx); err != nil {
			log.Warn(fmt.Sprintf("%s %s backend unreachable at startup",
				cli.WarningSign(),
				cli.Style(bCfg.Name, cli.Bold)),
				zap.Error(err))
		} else {
			log.Info(fmt.Sprintf("%s %s backend ready",
				cli.CheckMark(),
				cli.Style(bCfg.Name, cli.Bold)))
		}
		cancel()

		if err := g.Register(Registration{
			Name:     bCfg.Name,
			Backend:  backend,
			ModelIDs: bCfg.Models,
			Priority: bCfg.Priority,
		}); err != nil {
			log.Error("failed to register backend", zap.String("name", bCfg.Name), zap.Error(err))
			continue
		}

		registered++
	}

	if registered == 0 {
		log.Warn("no backends were registered; chat calls will fail")
	}

	return registered
}
