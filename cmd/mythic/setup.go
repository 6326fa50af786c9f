package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/container"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/providers/llm"
	"github.com/sandevgo/mythic/internal/providers/tts"
	"github.com/sandevgo/mythic/internal/service/command"
	"github.com/sandevgo/mythic/internal/service/conversation"
	"github.com/sandevgo/mythic/internal/service/memory"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/sandevgo/mythic/internal/storage/redis"
	"github.com/sandevgo/mythic/internal/storage/sqlite"
	"github.com/sandevgo/mythic/internal/transport/cli"
	"github.com/sandevgo/mythic/internal/transport/telegram"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/sandevgo/mythic/pkg/srv"
)

// NewServices builds and starts the orchestrator, then returns the services
// to run in start order. quit is called when an interactive transport exits.
func NewServices(ctx context.Context, cfg *config.AppConfig, quit func()) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// 1. Event bus
	bus := events.NewBus(events.WithHandlerTimeout(cfg.OperationTimeout))

	// 2. Storage
	repo, closeRepo, err := initStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(closeRepo))

	// 3. Workers
	c, err := initContainer(ctx, cfg, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register workers")
	}

	// 4. Orchestrator
	o := orchestrator.New(orchestratorConfig(cfg), c, bus)
	if err := o.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start orchestrator")
	}

	// 5. Conversation persistence
	if repo != nil {
		saver := conversation.NewSaver(o.Engine(), repo, cfg.SessionID, cfg.AutosaveInterval)
		if _, err := saver.Restore(ctx); err != nil {
			logger.Warn().Err(err).Msg("starting with an empty conversation")
		}
		services = append(services, saver)
	}
	services = append(services, o)

	// 6. Transports
	transports, err := initTransports(ctx, cfg, o, bus, quit)
	if err != nil {
		_ = o.Shutdown(ctx)
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

func orchestratorConfig(cfg *config.AppConfig) orchestrator.Config {
	prompt := memory.NewSysPrompt(cfg, cfg.SystemPrompt)
	return orchestrator.Config{
		Conversation: conversation.Config{
			SystemPrompt:            prompt.Build(),
			MaxHistoryLength:        cfg.MaxHistoryLength,
			SummaryTriggerThreshold: cfg.SummaryTriggerThreshold,
			RecentTailSize:          cfg.RecentTailSize,
			SummaryMaxLength:        cfg.SummaryMaxWords,
			OperationTimeout:        cfg.OperationTimeout,
		},
		Budget:           cfg.Budget(),
		OperationTimeout: cfg.OperationTimeout,
		ShutdownTimeout:  cfg.ShutdownTimeout,
		EnableTTS:        cfg.EnableTTS,
		Stream:           cfg.Stream,
		Generate:         cfg.GenerateOptions(),
	}
}

// initContainer registers the worker constructors. Nothing is built until
// the orchestrator resolves it.
func initContainer(ctx context.Context, cfg *config.AppConfig, bus *events.Bus) (*container.Container, error) {
	c := container.New()
	hook := worker.WithTransitionHook(orchestrator.TransitionPublisher(ctx, bus))

	llmCfg, err := config.ParseLLMConfig()
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	err = container.RegisterSingleton(c, func(r container.Resolver) (core.LLMWorker, error) {
		return llm.NewProvider(r.Context(), llmCfg, hook)
	})
	if err != nil {
		return nil, err
	}

	err = container.RegisterSingleton(c, func(r container.Resolver) (core.MemoryWorker, error) {
		model, err := container.Resolve[core.LLMWorker](r)
		if err != nil {
			return nil, err
		}
		return memory.NewSummarizer(model, hook), nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.EnableTTS {
		ttsCfg, err := config.ParseTTSConfig()
		if err != nil {
			return nil, fmt.Errorf("tts config: %w", err)
		}
		err = container.RegisterSingleton(c, func(container.Resolver) (core.TTSWorker, error) {
			return tts.NewOpenAISpeech(*ttsCfg, hook), nil
		})
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// initStorage opens the transcript repository selected by STORE_BACKEND.
// The returned repository is nil when persistence is disabled.
func initStorage(ctx context.Context, cfg *config.AppConfig) (core.TranscriptRepository, func() error, error) {
	storeCfg, err := config.ParseStorageConfig()
	if err != nil {
		return nil, nil, err
	}

	switch storeCfg.Backend {
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create runtime directory: %w", err)
		}
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewTranscriptRepo(db), db.Close, nil
	case config.StoreRedis:
		rdb, err := redis.NewClient(ctx, storeCfg)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewTranscriptRepo(rdb), rdb.Close, nil
	case config.StoreNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", storeCfg.Backend)
	}
}

func initTransports(ctx context.Context, cfg *config.AppConfig, o *orchestrator.Orchestrator, bus *events.Bus, quit func()) ([]srv.Service, error) {
	var services []srv.Service
	router := command.New(command.NewCommands(o))

	// Telegram Bot
	if cfg.EnableTelegram {
		tgCfg, err := config.ParseTelegramConfig()
		if err != nil {
			return nil, fmt.Errorf("telegram config: %w", err)
		}
		bot, err := telegram.NewBot(ctx, tgCfg, o, router)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	if cfg.EnableCLI {
		rl, err := cli.NewReadLine(o, router, bus, cfg)
		if err != nil {
			return nil, err
		}
		services = append(services, &quitOnExit{Service: rl, quit: quit})
	}

	return services, nil
}

// quitOnExit stops the process once an interactive service returns.
type quitOnExit struct {
	srv.Service
	quit func()
}

func (q *quitOnExit) Start(ctx context.Context) error {
	defer q.quit()
	return q.Service.Start(ctx)
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := config.AppConfig{RuntimePath: runtimePath}.GetEnvPath()

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
