// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"letter-service/internal/account"
	"letter-service/internal/api"
	"letter-service/internal/callqueue"
	"letter-service/internal/common/aws"
	"letter-service/internal/common/config"
	"letter-service/internal/common/database"
	"letter-service/internal/common/logger"
	"letter-service/internal/common/observability"
	"letter-service/internal/notify"
	"letter-service/internal/payment"
	"letter-service/internal/search"
	"letter-service/internal/store"
	"letter-service/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting letter service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var indexer *search.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, admin search unavailable")
	}

	// --- Init Email/SMS Clients ---
	var emailSender notify.EmailSender
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	var smsSender notify.SMSSender
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		smsSender = snsClient
	}
	notifier := notify.New(emailSender, smsSender, cfg.Integrations.AWS.SES.FromEmail, log)

	// --- Wire Stores and Services ---
	db := pg.DB
	rdb := redis.Client

	applications := store.NewApplications(db)
	tokens := store.NewReviewTokens(db)
	packages := store.NewPackages(db, rdb)
	users := store.NewUsers(db)
	settings := store.NewSettings(db, rdb)
	queueStore := store.NewCallQueue(db)

	gateway := payment.NewClient(cfg.Payment, log)

	var workflowIndexer workflow.Indexer
	if indexer != nil {
		workflowIndexer = indexer
	}
	authority := workflow.New(workflow.Deps{
		Applications: applications,
		Tokens:       tokens,
		Packages:     packages,
		Gateway:      gateway,
		Notifier:     notifier,
		Indexer:      workflowIndexer,
		Logger:       log,
	}, workflow.Settings{
		ReviewBaseURL: cfg.Review.BaseURL,
		TokenTTL:      cfg.Review.TokenTTL,
	})
	views := workflow.NewViews(applications)
	callQueue := callqueue.New(queueStore, notifier, log, cfg.CallQueue.PerItemMinutes)
	accounts := account.New(users, rdb, notifier, log, cfg.Auth.SessionTTL, cfg.Auth.BcryptCost)

	server := api.NewServer(api.Deps{
		Accounts:      accounts,
		Authority:     authority,
		Views:         views,
		CallQueue:     callQueue,
		Packages:      packages,
		Settings:      settings,
		Search:        indexer,
		Observability: obs,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Letter service stopped gracefully")
}
