package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/devtrackhq/devtrack-service/internal/analysis"
	"github.com/devtrackhq/devtrack-service/internal/config"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/internal/repository/postgres"
	"github.com/devtrackhq/devtrack-service/internal/scheduler"
	"github.com/devtrackhq/devtrack-service/internal/service"
	myhttp "github.com/devtrackhq/devtrack-service/internal/transport/http"
	"github.com/devtrackhq/devtrack-service/pkg/logger/slogpretty"
	"github.com/devtrackhq/devtrack-service/pkg/mailer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting devtrack-service", slog.String("env", cfg.Env))

	if err := runMigrations(cfg.Postgres, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	errChan := make(chan error, 1)

	db, err := postgres.NewDB(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	defer func() {
		if err := db.DB().Close(); err != nil {
			log.Error("db close failed", slog.String("error", err.Error()))
		}
	}()

	users := postgres.NewUserRepository(db.DB(), log)
	orgs := postgres.NewOrganizationRepository(db.DB(), log)
	repos := postgres.NewRepoRepository(db.DB(), log)
	commits := postgres.NewCommitRepository(db.DB(), log)
	pushEvents := postgres.NewPushEventRepository(db.DB(), log)
	waitlist := postgres.NewWaitlistRepository(db.DB(), log)

	broker, err := github.NewTokenBroker(cfg.GitHub, log)
	if err != nil {
		return fmt.Errorf("failed to init token broker: %w", err)
	}

	ghClient := github.NewClient(broker, log)
	summarizer := analysis.NewSummarizer(cfg.LLM, log)

	var mail mailer.Mailer = mailer.Noop{}
	if cfg.Mail.Host != "" {
		mail = mailer.NewSMTP(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	}

	ingest := service.NewIngestService(log, ghClient, summarizer,
		users, orgs, repos, commits, pushEvents, cfg.GitHub.RefreshEnrichment)
	backfill := service.NewBackfillService(log, ghClient, summarizer, orgs, repos, commits, users)
	accounts := service.NewAccountService(log, mail, users, orgs, repos, waitlist)

	go scheduler.New(accounts, log).Start(ctx)

	srv := myhttp.NewServer(log, ghClient, ingest, backfill, accounts, cfg.GitHub.WebhookSecret)
	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Routes(),
	}

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %w", err)

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %w", err)
	}

	return nil
}

// runMigrations applies pending schema migrations at startup. Skipped when
// MIGRATIONS_PATH is unset, which delegates migrations to cmd/migrator.
func runMigrations(cfg config.Postgres, log *slog.Logger) error {
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		log.Info("MIGRATIONS_PATH is not set, skipping migrations")
		return nil
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)

	m, err := migrate.New("file://"+migrationsPath, connStr)
	if err != nil {
		return fmt.Errorf("can't create migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no new migrations to apply")
			return nil
		}

		return fmt.Errorf("can't apply migrations: %w", err)
	}

	log.Info("migrations applied")

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	defer close(errChan)

	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %w", err)
	}
}
