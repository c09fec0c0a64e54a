package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/internal/daemon"
	"github.com/dosanma1/foundry/internal/generator"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate build.ninja whenever the build description changes",
	Long: `Generates build.ninja and keeps it up to date while the build
description is edited. A broken description is reported and the last good
build.ninja is kept.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}

	regenerate := func() {
		s, err := openSession()
		if err == nil {
			err = s.gen.Write(filepath.Join(s.root, generator.NinjaFile))
		}
		if err != nil {
			log.Error().Err(err).Msg("regeneration failed")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ build.ninja regenerated")
	}
	regenerate()

	cfg := daemon.DefaultWatcherConfig(configPath)
	cfg.Log = log
	w, err := daemon.NewWatcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	log.Info().Str("config", configPath).Msg("watching build description")
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		case ev := <-w.Events():
			log.Debug().Str("file", ev.Path).Stringer("event", ev.Type).Msg("change detected")
			if ev.Type == daemon.FileEventDeleted || ev.Type == daemon.FileEventRenamed {
				continue
			}
			regenerate()
		case err := <-w.Errors():
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
