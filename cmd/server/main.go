package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/calder-ai/relay/cmd"
	"github.com/calder-ai/relay/internal/analytics"
	"github.com/calder-ai/relay/internal/config"
	"github.com/calder-ai/relay/internal/gateway"
	"github.com/calder-ai/relay/internal/platform/logger"
	"github.com/calder-ai/relay/internal/platform/otel"
	"github.com/calder-ai/relay/internal/router"
	"github.com/calder-ai/relay/internal/server"
	"github.com/calder-ai/relay/internal/server/validator"
	"github.com/calder-ai/relay/internal/store/cache"
	"github.com/calder-ai/relay/internal/store/sqlite"

	// Trigger init() registration of backend implementations.
	_ "github.com/calder-ai/relay/internal/llm/openai"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	go cmd.CheckForUpdates()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	validator.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer("relay", log, os.Stderr)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	// Request audit store is optional; a disabled store drops nothing on
	// the request path.
	var ingestor analytics.Ingestor = analytics.Noop{}
	if cfg.Store.Enabled {
		repo, err := sqlite.NewSQLiteStorage(cfg.Store.DSN)
		if err != nil {
			log.Fatal("failed to open audit store", zap.Error(err))
		}
		defer func() {
			_ = repo.Close()
		}()

		ingestor = analytics.NewIngestor(log, repo)
		ingestor.Start(ctx)
	}

	cacheService := cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			cacheService = redisCache
		}
	}

	gw := gateway.New(log)
	registered := gateway.BootstrapBackends(ctx, gw, cfg.Backends, log)
	log.Info("backends registered", zap.Int("count", registered))

	rt := router.New(gw, cfg.Routing, cfg.Models, log)
	gw.SetRouter(rt)
	gw.SetIngestor(ingestor)

	if cfg.Models.Intent != "" {
		if backend, modelID, ok := gw.Lookup(cfg.Models.Intent); ok {
			gw.SetIntent(router.NewIntentClassifier(backend, modelID, log))
			log.Info("intent classification enabled", zap.String("model", cfg.Models.Intent))
		} else {
			log.Warn("intent model not resolvable, classification disabled",
				zap.String("model", cfg.Models.Intent))
		}
	}

	srv := server.New(cfg, log, gw, cacheService)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("relay listening", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	ingestor.Stop()
}
