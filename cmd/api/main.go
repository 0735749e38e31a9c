package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/handler"
	"github.com/Dan9191/card-ledger/internal/integrations/broker"
	"github.com/Dan9191/card-ledger/internal/middleware"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/scheduler"
	"github.com/Dan9191/card-ledger/internal/service"
	"github.com/Dan9191/card-ledger/internal/utils"
	"github.com/Dan9191/card-ledger/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	opts := service.Options{RejectBlockedTransfers: cfg.TransferRejectBlocked}
	if cfg.AMQPURL != "" {
		publisher, err := broker.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to broker: %v", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
	} else {
		logger.Info("AMQP_URL not set, events are not published")
	}
	svc := service.NewService(store, logger, opts)

	var sched *scheduler.Scheduler
	if cfg.DigestEnabled() {
		sched = scheduler.New(logger)
		job := &scheduler.DigestJob{
			Source:     svc.BlockRequests,
			Mailer:     email.NewSender(cfg, logger),
			Recipients: cfg.AdminEmails,
			Log:        logger,
		}
		if err := sched.Add(cfg.DigestSchedule, job); err != nil {
			logger.Fatalf("Failed to schedule digest: %v", err)
		}
		sched.Start()
	}

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	h := handler.NewHandler(svc, store, logger)
	h.RegisterRoutes(r, middleware.AuthMiddleware(auth.NewVerifier(cfg.JWTSecret), logger))

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
}

type healthStore interface {
	repository.Store
	handler.Pinger
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (healthStore, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	cipher, err := utils.NewCardCipher(cfg.CardEncryptionKey, cfg.CardHMACSecret)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := repository.NewRepository(db, cipher, logger)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
