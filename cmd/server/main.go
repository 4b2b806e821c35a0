package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/faktugo/faktugo-server/internal/application/service"
	"github.com/faktugo/faktugo-server/internal/config"
	"github.com/faktugo/faktugo-server/internal/infrastructure/external/mailgun"
	"github.com/faktugo/faktugo-server/internal/infrastructure/external/openai"
	"github.com/faktugo/faktugo-server/internal/infrastructure/persistence/repository"
	"github.com/faktugo/faktugo-server/internal/infrastructure/storage"
	httpserver "github.com/faktugo/faktugo-server/internal/interfaces/http"
	"github.com/faktugo/faktugo-server/internal/webhook"
	"github.com/faktugo/faktugo-server/pkg/database"
	"github.com/faktugo/faktugo-server/pkg/utils"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting FaktuGo server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.BaseDir, 0755); err != nil {
		logger.Fatal("Failed to create storage directory", zap.Error(err))
	}

	// Repositories
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	aliasRepo := repository.NewAliasRepository(db.DB, logger)
	settingsRepo := repository.NewSettingsRepository(db.DB, logger)
	tokenRepo := repository.NewTokenRepository(db.DB, logger)

	// Infrastructure adapters
	store := storage.NewLocalObjectStore(
		cfg.Storage.BaseDir,
		cfg.Storage.PublicBaseURL,
		cfg.Storage.SigningKey,
		logger,
	)

	classifier := openai.NewClassifier(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		logger,
	)

	mgClient := mailgun.NewClient(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.Mailgun.BaseURL, logger)
	sender := mailgun.NewSender(mgClient, cfg.Mailgun.From)
	fetcher := mailgun.NewFetcher(mgClient)

	// Application services
	serviceLogger := &zapLoggerAdapter{logger: logger}
	quotaService := service.NewQuotaService(invoiceRepo, settingsRepo, serviceLogger)
	dispatchService := service.NewDispatchService(invoiceRepo, store, sender, serviceLogger)
	ingestService := service.NewIngestService(
		invoiceRepo, settingsRepo, store, classifier,
		quotaService, dispatchService, serviceLogger,
	)
	invoiceService := service.NewInvoiceService(
		invoiceRepo, settingsRepo, store, dispatchService, serviceLogger,
	)
	exportService := service.NewExportService(invoiceRepo, serviceLogger)

	// Inbound email webhook
	webhookVerifier := webhook.NewVerifier(cfg.Mailgun.WebhookSigningKey, logger)
	webhookHandler := webhook.NewHandler(
		webhookVerifier, aliasRepo, settingsRepo, fetcher,
		ingestService, dispatchService, logger,
	)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		tokenRepo,
		ingestService,
		invoiceService,
		exportService,
		store,
		webhookHandler,
		serviceLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if path := os.Getenv("FAKTUGO_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
