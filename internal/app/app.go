package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/valentinpelus/voiceboard/internal/assistant"
	"github.com/valentinpelus/voiceboard/internal/config"
	"github.com/valentinpelus/voiceboard/internal/handler"
	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/internal/persist"
	"github.com/valentinpelus/voiceboard/internal/server"
	"github.com/valentinpelus/voiceboard/pkg/adapters"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/llm"
	"github.com/valentinpelus/voiceboard/pkg/slack"
)

// App holds all application dependencies
type App struct {
	Config      *config.Config
	Store       *feedback.Store
	LLMProvider llm.Provider
	SlackClient *slack.Client
	Staging     *csvimport.Staging
	Assistant   *assistant.Service
	Server      *server.Server

	snapshot persist.Snapshotter
	syncer   *persist.Syncer
}

// New initializes a new application with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store := feedback.New()

	// Restore persisted records (if configured)
	var (
		snapshot persist.Snapshotter
		syncer   *persist.Syncer
	)
	if cfg.StoreDSN != "" {
		var err error
		snapshot, err = persist.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		syncer = persist.NewSyncer(store, snapshot)
		n, err := syncer.Restore(ctx)
		if err != nil {
			snapshot.Close()
			return nil, fmt.Errorf("failed to restore feedback: %w", err)
		}
		logger.Info("Restored feedback snapshot", "records", n)
	}

	provider, err := llm.NewFactory(cfg.LLMConfig()).CreateProvider(ctx)
	if err != nil {
		if snapshot != nil {
			snapshot.Close()
		}
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	slackClient := slack.NewClient(cfg.SlackWebhookURL, cfg.SlackBotToken, cfg.SlackChannelID)
	if cfg.SlackWorkspaceID != "" {
		slackClient.SetWorkspaceID(cfg.SlackWorkspaceID)
	}
	if slackClient.HasBotToken() {
		if resp, err := slackClient.ValidateToken(ctx); err != nil {
			logger.Warn("Slack bot token validation failed", "err", err)
		} else {
			logger.Info("Slack bot token validated", "team", resp.Team, "user", resp.User)
		}
	}

	staging := csvimport.NewStaging(cfg.ImportTTL)
	chat := assistant.NewService(provider, store, slackClient, assistant.Options{
		Timeout: cfg.LLMTimeout,
		IdleTTL: cfg.ChatIdleTTL,
	})
	registry := adapters.NewRegistry(cfg.IngestFormats)

	srv := server.New(cfg.Port, cfg.APIAuthToken, cfg.ShutdownTimeout, server.Handlers{
		Feedback: handler.NewFeedbackHandler(store),
		Import:   handler.NewImportHandler(store, staging, slackClient, cfg.MaxUploadBytes),
		Ingest:   handler.NewIngestHandler(store, registry, cfg.MaxUploadBytes),
		Stats:    handler.NewStatsHandler(store),
		Chat:     handler.NewChatHandler(chat),
	})

	return &App{
		Config:      cfg,
		Store:       store,
		LLMProvider: provider,
		SlackClient: slackClient,
		Staging:     staging,
		Assistant:   chat,
		Server:      srv,
		snapshot:    snapshot,
		syncer:      syncer,
	}, nil
}

// LogStartupInfo logs application startup information
func (a *App) LogStartupInfo() {
	logger.Info("Starting voiceboard", "port", a.Config.Port, "provider", a.LLMProvider.Name(), "records", a.Store.Len())

	if a.Config.APIAuthToken != "" {
		logger.Info("API authentication: enabled (Bearer token required)")
	} else {
		logger.Warn("API authentication: disabled (anyone can read and modify feedback)")
	}

	if a.SlackClient.HasBotToken() {
		logger.Info("Slack sharing: enabled (bot token)")
	} else if a.SlackClient.IsConfigured() {
		logger.Info("Slack sharing: enabled (webhook)")
	} else {
		logger.Info("Slack sharing: disabled")
	}

	if a.syncer != nil {
		logger.Info("Persistence: enabled")
	} else {
		logger.Info("Persistence: disabled (records live in memory only)")
	}
}

// Run starts the background workers and serves HTTP until ctx is cancelled.
// Workers are stopped and the store is flushed before it returns.
func (a *App) Run(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(workerCtx)
		}()
	}
	start(a.Staging.Start)
	start(a.Assistant.Start)
	if a.syncer != nil {
		start(a.syncer.Run)
	}

	err := a.Server.Start(ctx)

	cancel()
	wg.Wait()
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases the persistence backend
func (a *App) Close() error {
	if a.snapshot == nil {
		return nil
	}
	return a.snapshot.Close()
}
