// Copyright 2024-2026 Aiku AI

// Command telegram-relay forwards messages from configured Telegram source
// conversations into one target conversation. It optionally replays a
// bounded window of history first, then relays live messages as they
// arrive, preserving reply threading and pacing sends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/telegram-relay/pkg/relay"
	"github.com/aiku/telegram-relay/pkg/relay/telegram"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "telegram-relay",
		Short:         "Relay messages from Telegram source chats into a target chat",
		Version:       fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level")

	cmd.AddCommand(
		newRunCommand(),
		newBackfillCommand(),
		newConfigCommand(),
	)
	return cmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Backfill configured history, then relay live messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := setupLogging()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, client, err := connect(ctx, log)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := relay.NewService(client, client, cfg, log)
			if err := svc.RunBackfillOnce(ctx); err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}
			if err := svc.RunLiveRelay(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			log.Info().Msg("Shutting down")
			return nil
		},
	}
}

func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Replay bounded history from every source once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := setupLogging()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, client, err := connect(ctx, log)
			if err != nil {
				return err
			}
			defer client.Close()

			// An explicit backfill run does not depend on history_sync
			// being enabled in the config.
			if !cfg.HistorySync.Enabled {
				cfg.HistorySync.Enabled = true
				if cfg.HistorySync.Limit == 0 {
					cfg.HistorySync.Limit = relay.DefaultHistoryLimit
				}
				if cfg.HistorySync.DaysBack == 0 {
					cfg.HistorySync.DaysBack = relay.DefaultHistoryDaysBack
				}
			}

			svc := relay.NewService(client, nil, cfg, log)
			return svc.RunBackfillOnce(ctx)
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write an example config to the configured path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists, not overwriting", configPath)
			}
			if err := os.WriteFile(configPath, []byte(relay.ExampleConfig), 0o600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote example config to %s\n", configPath)
			return nil
		},
	})
	return cmd
}

// connect loads the config and brings up a connected Telegram client.
func connect(ctx context.Context, log zerolog.Logger) (*relay.Config, *telegram.Client, error) {
	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	client, err := telegram.NewClient(cfg.APIToken, log)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func setupLogging() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.StampMilli,
	}).With().Timestamp().Logger().Level(level)
	exzerolog.SetupDefaults(&log)
	return log, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
