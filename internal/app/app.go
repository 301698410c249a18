package app

import (
	"context"
	"fmt"
	"os"

	redisclients "github.com/seekwell/seekwell-backend/internal/clients/redis"
	"github.com/seekwell/seekwell-backend/internal/data/repos"
	"github.com/seekwell/seekwell-backend/internal/db"
	httpapi "github.com/seekwell/seekwell-backend/internal/http"
	"github.com/seekwell/seekwell-backend/internal/http/handlers"
	"github.com/seekwell/seekwell-backend/internal/http/middleware"
	"github.com/seekwell/seekwell-backend/internal/modules/answer"
	"github.com/seekwell/seekwell-backend/internal/observability"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/platform/gcs"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
	"github.com/seekwell/seekwell-backend/internal/services"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

// App owns process lifetime: wiring, background forwarders, and shutdown.
type App struct {
	Log    *logger.Logger
	Server *httpapi.Server

	registry *sse.StreamRegistry
	stopBus  redisclients.StopBus

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "seekwell-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	observability.InitMetrics()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	searchClient, err := search.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init search client: %w", err)
	}
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	bucket, err := gcs.NewBucketService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	stopBus, err := redisclients.NewStopBus(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init stop bus: %w", err)
	}

	registry := sse.NewStreamRegistry()

	answers := answer.New(answer.UsecasesDeps{
		Log:    log,
		AI:     aiClient,
		Search: searchClient,
	})

	catalog, err := services.NewModelCatalog(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init model catalog: %w", err)
	}

	chatService := services.NewChatService(services.ChatServiceDeps{
		Log:             log,
		PG:              pg,
		Chats:           repos.NewChatRepo(theDB, log),
		Messages:        repos.NewMessageRepo(theDB, log),
		Traces:          repos.NewTraceRepo(theDB, log),
		Attachments:     repos.NewAttachmentRepo(theDB, log),
		Shared:          repos.NewSharedChatRepo(theDB, log),
		Agents:          repos.NewAgentRepo(theDB, log),
		Personalization: repos.NewPersonalizationRepo(theDB, log),
		Answers:         answers,
		Catalog:         catalog,
		Bucket:          bucket,
		Registry:        registry,
		StopBus:         stopBus,
	})

	authMw, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init auth middleware: %w", err)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Log:            log,
		AuthMiddleware: authMw,
		ChatHandler:    handlers.NewChatHandler(log, chatService),
		ModelsHandler:  handlers.NewModelsHandler(catalog),
	})

	return &App{
		Log:          log,
		Server:       httpapi.NewServer(log, router),
		registry:     registry,
		stopBus:      stopBus,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background listeners: the cross-replica stop forwarder.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.stopBus.StartForwarder(ctx, func(req redisclients.StopRequest) {
		if a.registry.Stop(req.ChatID) {
			a.Log.Info("stream stopped via stop bus", "chatId", req.ChatID)
		}
	}); err != nil {
		a.Log.Warn("stop forwarder not running", "error", err)
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.stopBus != nil {
		a.stopBus.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
