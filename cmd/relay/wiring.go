package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/ai"
	"github.com/iago/line-relay/internal/config"
	"github.com/iago/line-relay/internal/conversation"
	"github.com/iago/line-relay/internal/dedupe"
	"github.com/iago/line-relay/internal/fallback"
	httpserver "github.com/iago/line-relay/internal/http"
	"github.com/iago/line-relay/internal/http/handlers"
	"github.com/iago/line-relay/internal/line"
	"github.com/iago/line-relay/internal/repository"
	"github.com/iago/line-relay/internal/service"
	"github.com/iago/line-relay/internal/worker"
)

// relay is the assembled service: HTTP handler in front, one dispatcher
// behind it.
type relay struct {
	gateway    *service.CompletionGateway
	dispatcher *worker.Dispatcher
	handler    http.Handler
	closers    []func()
}

func (r *relay) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRelay wires every component. workerCtx bounds job processing and
// must outlive the HTTP server during shutdown.
func buildRelay(
	ctx context.Context,
	workerCtx context.Context,
	cfg config.Config,
	deliverer worker.Deliverer,
	logger zerolog.Logger,
) (*relay, error) {
	r := &relay{}

	gateway, err := setupGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	r.gateway = gateway

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	r.closers = append(r.closers, repoCloser)

	guard, guardCloser := setupGuard(ctx, cfg, logger)
	r.closers = append(r.closers, guardCloser)

	processor := worker.NewProcessor(gateway, deliverer, repo, worker.ProcessorConfig{
		DeliveryMode:  cfg.DeliveryMode,
		ReplyTokenTTL: cfg.ReplyTokenTTL(),
	}, logger)
	r.dispatcher = worker.NewDispatcher(workerCtx, processor, logger)

	jobsService := service.NewJobsService(repo, r.dispatcher, guard, logger).
		WithStoreTimeout(cfg.IngestStoreTimeout())
	api := handlers.NewAPI(jobsService, r.dispatcher, gateway, logger)
	r.handler = httpserver.NewRouter(httpserver.RouterDependencies{
		API:             api,
		Logger:          logger,
		AuthToken:       cfg.AuthToken,
		ChannelSecret:   cfg.LineChannelSecret,
		SignatureStrict: cfg.LineSignatureStrict,
	})
	return r, nil
}

func setupGateway(cfg config.Config, logger zerolog.Logger) (*service.CompletionGateway, error) {
	persona, err := service.LoadPersona(cfg.PersonaPath, service.PersonaData{})
	if err != nil {
		return nil, err
	}

	var client ai.ChatCompleter
	if cfg.AIEnabled() {
		client = ai.NewChatClient(ai.ChatClientConfig{
			APIKey:     cfg.CompletionAPIKey,
			BaseURL:    cfg.CompletionBaseURL,
			Timeout:    cfg.CompletionTimeout(),
			MaxRetries: cfg.CompletionMaxRetries,
		})
		logger.Info().
			Str("provider", cfg.CompletionProvider).
			Str("model", cfg.CompletionModel).
			Msg("AI replies enabled")
	} else {
		logger.Warn().Msg("no completion API key configured, replying with fallback messages only")
	}

	return service.NewCompletionGateway(service.CompletionGatewayDependencies{
		Client:      client,
		Store:       conversation.NewStore(cfg.MaxTurns),
		Fallback:    fallback.NewResponder(),
		Persona:     persona,
		Model:       cfg.CompletionModel,
		Temperature: cfg.CompletionTemperature,
		MaxTokens:   cfg.CompletionMaxTokens,
		Timeout:     cfg.CompletionTimeout(),
		Logger:      logger,
	}), nil
}

func setupLineClient(cfg config.Config, logger zerolog.Logger) (*line.Client, error) {
	if cfg.LineAccessToken == "" {
		logger.Warn().Msg("LINE_CHANNEL_ACCESS_TOKEN not configured, replies cannot be delivered")
	}
	return line.NewClient(line.ClientConfig{
		AccessToken: cfg.LineAccessToken,
		BaseURL:     cfg.LineAPIBaseURL,
		RPS:         cfg.DeliveryRPS,
		Burst:       cfg.DeliveryBurst,
	})
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (repository.JobsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not configured, using in-memory job repository")
		return repository.NewMemoryJobsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresJobsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize postgres repository, fallback to memory")
		return repository.NewMemoryJobsRepository(), func() {}
	}
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure postgres schema, fallback to memory")
		pgRepo.Close()
		return repository.NewMemoryJobsRepository(), func() {}
	}
	logger.Info().Msg("postgres job repository initialized")
	return pgRepo, pgRepo.Close
}

func setupGuard(ctx context.Context, cfg config.Config, logger zerolog.Logger) (dedupe.Guard, func()) {
	memory := func() (dedupe.Guard, func()) {
		return dedupe.NewMemoryGuard(dedupe.Config{
			TTL:        cfg.DedupeTTL(),
			MaxEntries: cfg.DedupeMaxEntries,
		}), func() {}
	}
	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not configured, using in-memory redelivery guard")
		return memory()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, fallback to in-memory redelivery guard")
		_ = client.Close()
		return memory()
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis redelivery guard initialized")
	return dedupe.NewRedisGuard(client, cfg.DedupeTTL()), func() { _ = client.Close() }
}
