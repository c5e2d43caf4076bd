package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/classbridge/frontdesk-backend/internal/api/rest"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/cache"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/clients"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/config"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/metrics"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/payments"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/repository"
	"github.com/classbridge/frontdesk-backend/internal/infrastructure/telemetry"
	"github.com/classbridge/frontdesk-backend/internal/service/agent"
	"github.com/classbridge/frontdesk-backend/internal/service/calltracker"
	"github.com/classbridge/frontdesk-backend/internal/service/conversation"
	"github.com/classbridge/frontdesk-backend/internal/service/intent"
	"github.com/classbridge/frontdesk-backend/internal/service/security"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	slog.SetDefault(slogger)

	zapLogger, err := newZapLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to set up zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	db, err := repository.Connect(ctx, &cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var store cache.Cache
	if cfg.Redis.URL != "" {
		store, err = cache.NewRedisCache(&cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
	} else {
		zapLogger.Warn("redis url not configured, using in-process cache")
		store = cache.NewMemoryCache()
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	callRepo := repository.NewCallRepository(db)
	convRepo := repository.NewConversationRepository(db)
	fraudRepo := repository.NewFraudRepository(db)
	directory := repository.NewDirectoryRepository(db)
	tickets := repository.NewTicketRepository(db)
	knowledge := repository.NewKnowledgeRepository(db)
	outbox := repository.NewNotificationOutbox(db)

	audit := repository.NewBestEffortFraudSink(fraudRepo, zapLogger)
	filter := security.NewFilter(fraudRepo, audit, cfg.Security, m, zapLogger)

	var textgen intent.TextGenerator
	if c := clients.NewTextGenClient(cfg.Agent.TextGenURL, cfg.Agent.TextGenAPIKey, cfg.Agent.TextGenModel); c != nil {
		textgen = c
	} else {
		zapLogger.Warn("text generation not configured, intent classification runs on the fallback path")
	}
	classifier := intent.NewClassifier(textgen, m, zapLogger)

	conversations := conversation.NewManager(convRepo, store, zapLogger)
	tracker := calltracker.NewTracker(callRepo, conversations, store, m, zapLogger)

	linker, err := payments.NewLinkBuilder(cfg.Payments.LinkBaseURL)
	if err != nil {
		zapLogger.Fatal("payment link builder init failed", zap.Error(err))
	}

	frontdesk := agent.New(
		tracker, filter, classifier, conversations,
		tickets, outbox, directory, linker, knowledge,
		m, zapLogger,
	)

	handler := rest.NewHandler(frontdesk, tracker, zapLogger)
	server := rest.NewServer(cfg, handler, tracker, db, store, registry, zapLogger)

	if err := server.Start(); err != nil {
		zapLogger.Fatal("server error", zap.Error(err))
	}
}

func newZapLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
