package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/audit"
	"github.com/volantix/siteapi/internal/auth"
	"github.com/volantix/siteapi/internal/captcha"
	"github.com/volantix/siteapi/internal/config"
	"github.com/volantix/siteapi/internal/credential"
	"github.com/volantix/siteapi/internal/httpapi"
	"github.com/volantix/siteapi/internal/kv"
	"github.com/volantix/siteapi/internal/mailer"
	"github.com/volantix/siteapi/internal/otp"
	"github.com/volantix/siteapi/internal/rate"
	"github.com/volantix/siteapi/internal/session"
	"github.com/volantix/siteapi/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kvClient := kv.New(kv.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rdb, err := kvClient.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = kvClient.Close() }()

	recordStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = recordStore.Close() }()

	verifier := credential.NewVerifier(cfg.CredentialSecret, logger)
	defer verifier.Close()

	if cfg.AdminPassword != "" {
		if err := auth.EnsureAdmin(recordStore, verifier, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return err
		}
	}

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost+":"+cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		logger.Warn("no SMTP relay configured, codes go to the log")
		mail = mailer.NewLogMailer(logger)
	}

	var captchaVerifier captcha.Verifier = captcha.Disabled{}
	if cfg.CaptchaVerifyURL != "" {
		captchaVerifier = captcha.NewHTTPVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret)
	}

	codec := session.NewCodec(cfg.SessionSecret)
	authority := auth.NewAuthority(
		recordStore,
		verifier,
		codec,
		rate.NewThrottle(rdb),
		rate.NewLimiter(rdb, 0),
		otp.NewService(rdb),
		mail,
		logger,
	)

	recorder := audit.NewRecorder(recordStore, logger)
	defer recorder.Close()

	server := httpapi.NewServer(httpapi.Options{
		Logger:        logger,
		Store:         recordStore,
		Authority:     authority,
		Verifier:      verifier,
		Codec:         codec,
		Audit:         recorder,
		Captcha:       captchaVerifier,
		Mail:          mail,
		Inbox:         cfg.MailInbox,
		SecureCookies: cfg.IsProduction(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // progressive login delay can hold a response open
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.RecordStore, error) {
	switch cfg.StoreAdapter {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLiteFile)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres adapter requires STORE_DSN")
		}
		return store.NewPostgresStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store adapter %q", cfg.StoreAdapter)
	}
}
