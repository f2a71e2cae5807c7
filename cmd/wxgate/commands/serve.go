package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/wxgate/internal/config"
	"github.com/mattjoyce/wxgate/internal/lock"
	"github.com/mattjoyce/wxgate/internal/log"
	"github.com/mattjoyce/wxgate/internal/responder"
	"github.com/mattjoyce/wxgate/internal/storage"
	"github.com/mattjoyce/wxgate/internal/token"
	"github.com/mattjoyce/wxgate/internal/webhook"
)

// tokenWarmInterval is how often serve checks the access token.
const tokenWarmInterval = time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the callback gateway in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
}

func runServe(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("wxgate starting", "version", version, "config", path, "endpoints", len(cfg.Endpoints))

	lockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.AcquirePIDLock(lockPath)
	if err != nil {
		return fmt.Errorf("failed to acquire PID lock %s (another instance may be running): %w", lockPath, err)
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", lockPath)

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.State.Path, err)
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	var opts []responder.Option
	if cfg.Platform.TokenEnabled() {
		tokens := newTokenCache(cfg, db)
		go tokens.Run(ctx, tokenWarmInterval)
		opts = append(opts, responder.WithTokens(tokens))
		logger.Info("access token management enabled", "corp_id", cfg.Platform.CorpID, "agent_id", cfg.Platform.AgentID)
	}

	wcfg, err := webhook.FromGlobalConfig(cfg, defaultTable(), log.WithComponent("responder"), opts...)
	if err != nil {
		return fmt.Errorf("failed to build endpoints: %w", err)
	}

	server := webhook.New(wcfg, log.WithComponent("webhook"))
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("wxgate stopped")
	return nil
}

func newTokenCache(cfg *config.Config, db *sql.DB) *token.Cache {
	p := cfg.Platform
	fetcher := token.NewHTTPFetcher(p.APIBase, p.CorpID, p.CorpSecret, p.Timeout)
	return token.NewCache(
		token.Key{CorpID: p.CorpID, AgentID: p.AgentID},
		fetcher,
		log.WithComponent("token"),
		token.WithStore(token.NewStore(db)),
		token.WithRefreshSkew(p.RefreshSkew),
	)
}
