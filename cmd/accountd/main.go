// Command accountd serves the account API: registration, login, token
// refresh, logout and password reset over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/directory/memory"
	"github.com/MrEthical07/goAccount/directory/postgres"
	"github.com/MrEthical07/goAccount/httpapi"
	"github.com/MrEthical07/goAccount/mail"
	"github.com/MrEthical07/goAccount/metrics/export/prometheus"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	s, err := loadSettings(opts, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(s.Server)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, logger); err != nil {
		logger.Error("accountd stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(s serverSettings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
}

func run(ctx context.Context, s settings, logger *slog.Logger) error {
	for _, w := range s.Account.Lint() {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}
	if s.Account.Security.ProductionMode {
		if err := s.Account.Lint().AsError(goAccount.LintHigh); err != nil {
			return fmt.Errorf("refusing to start in production mode: %w", err)
		}
	}

	rdb, closeRedis, err := openRedis(ctx, s.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	dir, closeDir, err := openDirectory(ctx, s.Directory, logger)
	if err != nil {
		return err
	}
	defer closeDir()

	mailer, err := newMailer(s.Mail, logger)
	if err != nil {
		return err
	}

	builder := goAccount.New().
		WithConfig(s.Account).
		WithRedis(rdb).
		WithUserDirectory(dir).
		WithMailer(mailer).
		WithLogger(logger)
	if s.Server.AuditLog {
		builder = builder.WithAuditSink(goAccount.NewSlogAuditSink(logger))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := bootstrapAdmin(ctx, engine, s.Bootstrap, logger); err != nil {
		return err
	}

	report := engine.SecurityReport()
	logger.Info("security posture",
		"signing", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"session_cap", report.MaxSessionsPerUser,
		"login_throttle", report.LoginThrottleActive,
		"reset_throttle", report.ResetThrottleActive,
		"secure_cookies", report.SecureCookies,
	)

	var limiter *middleware.IPRateLimiter
	if s.Server.RateLimitRPS > 0 {
		limiter = middleware.NewIPRateLimiter(s.Server.RateLimitRPS, s.Server.RateLimitBurst, 10*time.Minute)
		go sweepLimiter(ctx, limiter)
	}

	proxies, err := middleware.NewProxyResolver(s.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	api := httpapi.New(engine, httpapi.Options{
		Logger:        logger,
		SecureCookies: s.Account.Security.RequireSecureCookies,
		SameSite:      s.Account.Security.SameSitePolicy,
		RateLimiter:   limiter,
		Proxies:       proxies,
		Metrics:       prometheus.NewPrometheusExporter(engine).Handler(),
		Health: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              s.Server.Addr,
		Handler:           api.Routes(),
		ReadTimeout:       s.Server.ReadTimeout,
		ReadHeaderTimeout: s.Server.ReadTimeout,
		WriteTimeout:      s.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("accountd listening", "addr", s.Server.Addr,
			"directory", s.Directory.Driver, "mail", s.Mail.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if st := engine.AuditStats(); st.Dropped > 0 || st.SinkPanics > 0 {
		logger.Warn("audit events lost", "dropped", st.Dropped, "by_type", st.DroppedByType, "sink_panics", st.SinkPanics)
	}
	return nil
}

func openRedis(ctx context.Context, s redisSettings, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := s.Addr
	var mr *miniredis.Miniredis
	if s.Embedded {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("using embedded redis; state is lost on exit", "addr", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: s.Password,
		DB:       s.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, cleanup, nil
}

func openDirectory(ctx context.Context, s directorySettings, logger *slog.Logger) (goAccount.UserDirectory, func(), error) {
	switch s.Driver {
	case "postgres":
		dir, db, err := postgres.Open(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres directory ready")
		return dir, func() { closeDB(db, logger) }, nil
	default:
		logger.Warn("using in-memory user directory; accounts are lost on exit")
		return memory.New(), func() {}, nil
	}
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close postgres", "error", err)
	}
}

func newMailer(s mailSettings, logger *slog.Logger) (goAccount.Mailer, error) {
	if s.Driver != "smtp" {
		return mail.NewLogSender(logger, s.LogBody), nil
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		Timeout:  s.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp mailer: %w", err)
	}
	return sender, nil
}

type provisioner interface {
	Provision(ctx context.Context, in goAccount.RegisterInput) (goAccount.UserView, error)
}

// bootstrapAdmin creates the configured admin once. An existing account
// with that name or email is left alone.
func bootstrapAdmin(ctx context.Context, p provisioner, b bootstrapSettings, logger *slog.Logger) error {
	if !b.enabled() {
		return nil
	}
	view, err := p.Provision(ctx, goAccount.RegisterInput{
		Username: b.AdminUsername,
		Email:    b.AdminEmail,
		Password: b.AdminPassword,
		Role:     goAccount.RoleAdmin.String(),
	})
	switch {
	case errors.Is(err, goAccount.ErrConflict):
		logger.Info("bootstrap admin already exists", "username", b.AdminUsername)
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", "user_id", view.ID, "username", view.Username)
	return nil
}

func sweepLimiter(ctx context.Context, l *middleware.IPRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
