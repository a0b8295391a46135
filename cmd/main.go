package main

import (
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/hearth/internal/auth"
	"github.com/davidbz/hearth/internal/chat"
	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/http"
	"github.com/davidbz/hearth/internal/http/middleware"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/registry"
	"github.com/davidbz/hearth/internal/routing"
	memorystore "github.com/davidbz/hearth/internal/store/memory"
	redisstore "github.com/davidbz/hearth/internal/store/redis"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Conversation store: Redis when configured, in-memory otherwise.
	if err := container.Provide(func(cfg *config.RedisConfig) domain.ConversationStore {
		if cfg.Addr == "" {
			return memorystore.NewStore()
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return redisstore.NewStore(client)
	}); err != nil {
		log.Fatalf("Failed to provide conversation store: %v", err)
	}

	// Model Registry
	if err := container.Provide(registry.NewModelRegistry); err != nil {
		log.Fatalf("Failed to provide model registry: %v", err)
	}
	if err := container.Provide(func(r *registry.ModelRegistry) domain.TierResolver {
		return r
	}); err != nil {
		log.Fatalf("Failed to provide tier resolver: %v", err)
	}

	// Fallback Orchestrator
	if err := container.Provide(routing.NewOrchestrator); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}

	// Domain Services
	if err := container.Provide(chat.NewService); err != nil {
		log.Fatalf("Failed to provide chat service: %v", err)
	}

	// Identity resolution
	if err := container.Provide(auth.NewResolver); err != nil {
		log.Fatalf("Failed to provide auth resolver: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
