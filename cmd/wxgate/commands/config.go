package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/wxgate/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and lock configuration",
	}
	cmd.AddCommand(configCheckCmd(), configLockCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate syntax, policy and integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			absPath, _ := config.ResolvePath(configPath)
			if _, err := os.Stat(filepath.Join(filepath.Dir(absPath), config.ChecksumFile)); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "integrity: not locked (run 'wxgate config lock')")
			} else {
				fmt.Fprintln(out, "integrity: verified")
			}

			for _, ep := range cfg.Endpoints {
				fmt.Fprintf(out, "endpoint %s receiver=%s\n", ep.Path, ep.ReceiverID)
			}
			if cfg.Platform.TokenEnabled() {
				fmt.Fprintf(out, "access tokens: enabled (%s)\n", cfg.Platform.CorpID)
			} else {
				fmt.Fprintln(out, "access tokens: disabled")
			}
			fmt.Fprintf(out, "Configuration valid: %d endpoint(s)\n", len(cfg.Endpoints))
			return nil
		},
	}
}

func configLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Authorize the current config (write integrity hashes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := config.ResolvePath(configPath)
			if err != nil {
				return err
			}

			// Never lock a config that would not load
			data, err := os.ReadFile(absPath)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			if _, err := config.Parse(data); err != nil {
				return fmt.Errorf("%s: %w", absPath, err)
			}

			manifest, err := config.Lock(absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked %s (%d file, %s)\n",
				filepath.Join(filepath.Dir(absPath), config.ChecksumFile), len(manifest.Hashes), manifest.GeneratedAt)
			return nil
		},
	}
}
