package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	httpapi "github.com/dmstore/dmstore/internal/api/http"
	appConversation "github.com/dmstore/dmstore/internal/application/conversation"
	appSession "github.com/dmstore/dmstore/internal/application/session"
	"github.com/dmstore/dmstore/internal/application/verification"
	"github.com/dmstore/dmstore/internal/config"
	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/infrastructure/discord"
	"github.com/dmstore/dmstore/internal/infrastructure/imap"
	"github.com/dmstore/dmstore/internal/infrastructure/postgres"
	"github.com/dmstore/dmstore/internal/infrastructure/sqlite"
	"github.com/dmstore/dmstore/internal/infrastructure/sse"
	"github.com/dmstore/dmstore/internal/infrastructure/storefront"
)

// stores groups the persistence ports so either driver can back them.
type stores struct {
	conversations conversation.Repository
	ledger        catalog.Ledger
	scans         mailbox.ScanRepository
	close         func()
}

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load before reading the environment")
	storefrontPath := pflag.String("storefront", "", "storefront definition file (overrides STOREFRONT_PATH)")
	pflag.Parse()

	if err := run(*envFile, *storefrontPath); err != nil {
		fmt.Fprintf(os.Stderr, "dmstore: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, storefrontPath string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if storefrontPath != "" {
		cfg.StorefrontPath = storefrontPath
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	files, err := storefront.Open(cfg.StorefrontPath)
	if err != nil {
		return fmt.Errorf("storefront error: %w", err)
	}
	if _, err := files.Current(); errors.Is(err, storefront.ErrNotConfigured) {
		logger.Warn().Str("path", files.Path()).Msg("no storefront configured; listeners need an inline storefront until one is uploaded")
	}

	// adapters
	fetcher := imap.NewFetcher(cfg.MailboxAddr, cfg.MailboxDialTimeout, logger)
	gateway := discord.NewGateway(logger)
	events := sse.NewHub(logger)

	// services
	verifier := verification.NewVerifier(fetcher, st.scans, cfg.MailboxScanWindow, logger)
	manager := appSession.NewManager(gateway, logger)
	manager.Observe(events)

	apiServer := httpapi.NewServer(httpapi.Deps{
		Sessions:    manager,
		Directory:   discord.NewDirectory(),
		Storefronts: files,
		Ledger:      st.ledger,
		Conversation: appConversation.Deps{
			Repo:     st.conversations,
			Ledger:   st.ledger,
			Verifier: verifier,
		},
		Events:               events,
		BroadcastMinInterval: cfg.BroadcastMinInterval,
		APIKey:               cfg.APIKey,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Bool("tls", cfg.TLS()).Msg("http server started")
		var err error
		if cfg.TLS() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err, ok := <-serveErr:
		if ok {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := manager.StopAll(ctxShutdown); err != nil {
		logger.Warn().Err(err).Msg("sessions did not stop cleanly")
	}
	events.Stop()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Warn().Err(err).Msg("http shutdown failed")
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool, postgres.Migrations()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		return &stores{
			conversations: postgres.NewConversationRepository(pool),
			ledger:        postgres.NewSoldRepository(pool),
			scans:         postgres.NewScanRepository(pool),
			close:         pool.Close,
		}, nil
	default:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		return &stores{
			conversations: store,
			ledger:        store,
			scans:         store,
			close:         func() { _ = store.Close() },
		}, nil
	}
}
