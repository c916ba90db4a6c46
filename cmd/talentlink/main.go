package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"talentlink/internal/config"
	"talentlink/internal/mail"
	"talentlink/internal/observability/logging"
	"talentlink/internal/observability/metrics"
	"talentlink/internal/realtime"
	"talentlink/internal/service"
	impl "talentlink/internal/service/impl"
	"talentlink/internal/store"
	"talentlink/internal/ticket"
	httpx "talentlink/internal/transport/http"
	"talentlink/pkg/db"
)

const serviceName = "talentlink"

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	metrics.MustRegister(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) DB
	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(ctx); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	// 2) Services
	var email service.EmailService = mail.LogSender{}
	if cfg.SMTP.Configured() {
		email = mail.NewSMTPSender(cfg.SMTP)
	}

	pw := impl.NewPasswordServiceBcrypt(bcrypt.DefaultCost)
	ts := impl.NewTokenServiceHS256(impl.TokenConfig{
		AccessTTL:  cfg.AccessTTL,
		SigningKey: []byte(cfg.SecretKey),
	})
	as := impl.NewAuthServiceImpl(st, pw, ts, email, cfg.ResetTokenTTL, cfg.FrontendURL+"/reset-password")

	registry := realtime.NewRegistry(logger)
	ms := impl.NewMessageServiceImpl(st, registry)

	tickets, closeTickets, err := ticketBroker(ctx, cfg)
	if err != nil {
		logger.Error("ticket store", "error", err)
		os.Exit(1)
	}
	defer closeTickets()

	// 3) HTTP
	router := httpx.NewRouter(as, ms, tickets, registry, httpx.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		TrustProxy:       cfg.TrustProxy,
		RateLimitRequest: cfg.RateLimitRequest,
		RateLimitWindow:  cfg.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("talentlink listening", "addr", srv.Addr, "env", cfg.Environment, "ticket_store", cfg.TicketStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func ticketBroker(ctx context.Context, cfg config.Config) (*ticket.Broker, func(), error) {
	if cfg.TicketStore == "redis" {
		rdb, err := ticket.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return ticket.NewBroker(ticket.NewRedisStore(rdb), cfg.TicketTTL), func() { _ = rdb.Close() }, nil
	}
	return ticket.NewBroker(ticket.NewMemoryStore(cfg.TicketCapacity), cfg.TicketTTL), func() {}, nil
}
