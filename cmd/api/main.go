package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/testiflow-api/internal/application/account"
	"github.com/testiflow-api/internal/application/auth"
	fileapp "github.com/testiflow-api/internal/application/file"
	"github.com/testiflow-api/internal/application/insight"
	"github.com/testiflow-api/internal/application/notification"
	"github.com/testiflow-api/internal/application/space"
	"github.com/testiflow-api/internal/config"
	"github.com/testiflow-api/internal/infrastructure/ai"
	"github.com/testiflow-api/internal/infrastructure/dynamo"
	googleinfra "github.com/testiflow-api/internal/infrastructure/google"
	jwtinfra "github.com/testiflow-api/internal/infrastructure/jwt"
	"github.com/testiflow-api/internal/infrastructure/mail"
	s3infra "github.com/testiflow-api/internal/infrastructure/s3"
	"github.com/testiflow-api/internal/infrastructure/sns"
	"github.com/testiflow-api/internal/pkg/logger"
	transporthttp "github.com/testiflow-api/internal/transport/http"
	appmiddleware "github.com/testiflow-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)
	accountRepo := dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts, cfg.DynamoTables.AccountEmails)
	spaceRepo := dynamo.NewSpaceRepo(dynamoClient, cfg.DynamoTables.Spaces)

	// Session tokens cannot be issued without keys, so this one is fatal.
	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	mailer, err := mail.New(cfg, log)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	notifyOpts := notification.Options{
		Workers:    cfg.Mail.Workers,
		QueueSize:  cfg.Mail.QueueSize,
		MaxRetries: cfg.Mail.MaxRetries,
		Logger:     log,
	}
	// A nil *Publisher must not reach the interface field.
	if publisher, err := sns.NewPublisher(cfg); err != nil {
		log.Warn("review alerts disabled", "error", err)
	} else if publisher != nil {
		notifyOpts.Alerts = publisher
	}
	dispatcher := notification.NewDispatcher(mailer, notifyOpts)

	s3Client, err := s3infra.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}
	logoStore := s3infra.NewStore(s3Client, cfg.S3BucketName, cfg.S3PublicBaseURL)

	if cfg.GoogleClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set, Google sign-in will reject every token")
	}
	google := googleinfra.NewVerifier(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	proxies, err := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	publicLimiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10).TrustProxies(proxies)
	defer publicLimiter.Stop()

	deps := &transporthttp.Deps{
		Auth: auth.NewService(auth.ServiceDeps{
			AccountRepo: accountRepo,
			Tokens:      tokens,
			Google:      google,
			Notifier:    dispatcher,
			ClientURL:   cfg.ClientURL,
		}),
		Account: account.NewService(account.ServiceDeps{
			AccountRepo: accountRepo,
			SpaceRepo:   spaceRepo,
			Notifier:    dispatcher,
		}),
		Space: space.NewService(space.ServiceDeps{
			SpaceRepo:     spaceRepo,
			AccountRepo:   accountRepo,
			Notifier:      dispatcher,
			PublicBaseURL: cfg.PublicBaseURL,
		}),
		Insight: insight.NewService(insight.ServiceDeps{
			SpaceRepo: spaceRepo,
			AI:        ai.NewClient(cfg.AIServiceURL, cfg.AITimeout),
		}),
		File:          fileapp.NewService(logoStore),
		Metrics:       appmiddleware.NewMetrics(registry),
		PublicLimiter: publicLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	// Handlers are done; flush queued mail and alerts.
	if err := dispatcher.Close(ctx); err != nil {
		log.Warn("notification queue not drained", "error", err)
	}
	log.Info("server stopped")
	return nil
}
