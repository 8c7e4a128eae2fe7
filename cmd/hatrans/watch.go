package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/common/output"
	"github.com/hatrans/hatrans/internal/translator"
	"github.com/spf13/cobra"
)

var watchInterval string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch update entities and translate new release notes",
	Long: `Poll Home Assistant for update entities, translate the release notes
of newly reported versions and write the translations back.

Runs until interrupted. Each (entity, version) pair is translated at
most once; the ledger survives restarts.

Examples:
  hatrans watch                  Poll at the configured interval
  hatrans watch --interval 1m    Poll every minute`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "Poll interval (overrides config, e.g. 1m, 30s)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	p, err := buildPipeline()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	interval, err := p.cfg.PollInterval()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if watchInterval != "" {
		interval, err = time.ParseDuration(watchInterval)
		if err != nil || interval <= 0 {
			logger.Error("invalid interval %q", watchInterval)
			os.Exit(1)
		}
	}

	if err := logger.Default().EnableFileLogging(); err != nil {
		logger.Warn("file logging disabled: %v", err)
	}
	defer logger.Default().Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.client.CheckAPI(ctx); err != nil {
		logger.Error("Home Assistant unreachable: %v", err)
		os.Exit(1)
	}

	logger.Info("watching update entities every %s (agent: %s)", interval, p.cfg.Translator.Agent)

	err = p.watcher.Run(ctx, interval, func(r translator.Result) {
		switch r.Action {
		case translator.ActionTranslated:
			output.PrintSuccess("%s %s translated (%s)", output.FormatEntity(r.EntityID), r.Version, r.Notes.Source)
		case translator.ActionReapplied:
			output.PrintInfo("%s %s translation reapplied", output.FormatEntity(r.EntityID), r.Version)
		case translator.ActionFailed:
			logger.Error("%s %s: %s: %v", r.EntityID, r.Version, r.Reason, r.Err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch loop stopped: %v", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
