package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scholar/internal/fingerprint"
	"scholar/internal/platform/config"
	"scholar/internal/platform/logger"
)

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file>",
		Short: "Print a file's content fingerprint and whether it was already funded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			deps, err := openInfra(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			store, err := buildFingerprintStore(ctx, cfg, deps)
			if err != nil {
				return err
			}
			reg, err := fingerprint.New(ctx, store, fingerprint.WithLogger(log))
			if err != nil {
				return err
			}

			hash := fingerprint.Fingerprint(raw)
			fmt.Fprintf(cmd.OutOrStdout(), "%s funded=%t\n", hash, reg.Contains(hash))
			return nil
		},
	}
}
