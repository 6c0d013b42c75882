// Package server initializes and runs the consent signing server. It
// resolves secrets, configures the storage backend, wires the services and
// handles graceful shutdown of the HTTP endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthmetrix/dynamic-consent/internal/logging"
	"github.com/healthmetrix/dynamic-consent/internal/secrets"
	"github.com/healthmetrix/dynamic-consent/internal/server/auth"
	"github.com/healthmetrix/dynamic-consent/internal/server/config"
	"github.com/healthmetrix/dynamic-consent/internal/server/httpapi"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/repomanager"
	"github.com/healthmetrix/dynamic-consent/internal/server/services"
	"github.com/healthmetrix/dynamic-consent/internal/templates"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	handler *httpapi.Handler
	db      *sql.DB
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	sec, err := newSecrets(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets init error: %w", err)
	}

	tokenKeyValue, err := sec.Get(ctx, secrets.KeyTokenEncryptionKey)
	if err != nil {
		return nil, err
	}
	tokenKey, err := secrets.ParseTokenKey(tokenKeyValue)
	if err != nil {
		return nil, err
	}

	signingMaterialValue, err := sec.Get(ctx, secrets.KeySigningSigningMaterial)
	if err != nil {
		return nil, err
	}
	signingMaterial, err := secrets.ParseSigningMaterial(signingMaterialValue, cfg.SignerName)
	if err != nil {
		return nil, err
	}

	consentMaterialValue, err := sec.Get(ctx, secrets.KeyConsentSigningMaterial)
	if err != nil {
		return nil, err
	}
	consentMaterial, err := secrets.ParseSigningMaterial(consentMaterialValue, cfg.SignerName)
	if err != nil {
		return nil, err
	}

	var (
		manager repomanager.RepositoryManager
		db      *sql.DB
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		dsn, err := resolveDSN(ctx, cfg, sec)
		if err != nil {
			return nil, err
		}
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		manager = repomanager.NewPostgresRepositoryManager()
		if err := manager.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
	case config.BackendInMemory:
		manager = repomanager.NewInMemoryRepositoryManager()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	extractor, err := newExtractor(ctx, cfg, sec)
	if err != nil {
		return nil, err
	}

	templateRepo := templates.NewLocalRepository(cfg.TemplateDir)
	consentService := services.NewConsentService(db, manager, templateRepo, signingMaterial)
	tokenService := services.NewTokenService(tokenKey)
	documentService := services.NewDocumentService(templateRepo, consentMaterial)

	handler := httpapi.NewHandler(consentService, tokenService, documentService, extractor, logger)

	return &App{config: cfg, logger: logger, handler: handler, db: db}, nil
}

func newSecrets(ctx context.Context, cfg *config.Config) (secrets.Secrets, error) {
	switch cfg.SecretsBackend {
	case config.SecretsEnv:
		return &secrets.EnvSecrets{Prefix: cfg.EnvSecretPrefix}, nil
	case config.SecretsAWS:
		return secrets.NewAWSSecretsFromEnv(ctx, cfg.AWSRegion, cfg.AWSSecretsNamespace)
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.SecretsBackend)
	}
}

// resolveDSN injects the database credentials secret into the configured
// DSN. A missing credentials secret is not fatal: local setups carry the
// credentials in the DSN itself.
func resolveDSN(ctx context.Context, cfg *config.Config, sec secrets.Secrets) (string, error) {
	value, err := sec.Get(ctx, secrets.KeyDBCredentials)
	if err != nil {
		return cfg.DatabaseDSN, nil
	}
	creds, err := secrets.ParseDBCredentials(value)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(cfg.DatabaseDSN)
	if err != nil {
		return "", fmt.Errorf("invalid database DSN: %w", err)
	}
	u.User = url.UserPassword(creds.Username, creds.Password)
	return u.String(), nil
}

func newExtractor(ctx context.Context, cfg *config.Config, sec secrets.Secrets) (auth.Extractor, error) {
	if len(cfg.JWTIssuers) == 0 {
		return auth.PassthroughExtractor{}, nil
	}
	secret, err := sec.Get(ctx, secrets.KeyJWTVerificationSecret)
	if err != nil {
		return nil, err
	}
	return auth.NewVerifyingExtractor(auth.NewHMACVerifier([]byte(secret), cfg.JWTIssuers...)), nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains in-flight requests within the shutdown timeout.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if app.db != nil {
		return app.db.Close()
	}
	return nil
}
