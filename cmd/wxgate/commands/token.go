package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/wxgate/internal/config"
	"github.com/mattjoyce/wxgate/internal/log"
	"github.com/mattjoyce/wxgate/internal/storage"
)

func tokenCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token and show its expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Platform.TokenEnabled() {
				return fmt.Errorf("platform.corp_secret is not configured")
			}
			log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Platform.Timeout+5*time.Second)
			defer cancel()

			db, err := storage.OpenSQLite(ctx, cfg.State.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			cache := newTokenCache(cfg, db)
			if refresh {
				cache.Invalidate()
			}

			tok, err := cache.Token(ctx)
			if err != nil {
				return err
			}

			// The token itself is a credential and is never printed.
			fmt.Fprintf(cmd.OutOrStdout(), "access token for %s/%d valid until %s\n",
				cfg.Platform.CorpID, cfg.Platform.AgentID, tok.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the stored token and fetch a new one")
	return cmd
}
