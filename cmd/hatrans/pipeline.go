package main

import (
	"fmt"
	"time"

	"github.com/hatrans/hatrans/internal/common/config"
	"github.com/hatrans/hatrans/internal/common/logger"
	"github.com/hatrans/hatrans/internal/hass"
	"github.com/hatrans/hatrans/internal/translator"
)

// Minimum spacing between outbound requests.
const (
	httpSpacing  = 500 * time.Millisecond
	agentSpacing = 2 * time.Second
)

// pipeline bundles everything a translation command needs.
type pipeline struct {
	cfg     *config.Config
	client  *hass.Client
	watcher *translator.Watcher
	ledger  *translator.Ledger
}

// buildPipeline loads and validates the configuration, then wires the
// watcher with its resolver, agent, writer and ledger.
func buildPipeline() (*pipeline, error) {
	configPath, err := config.FindConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(configPath); err != nil {
		return nil, err
	}

	serverURL, err := cfg.ServerURL()
	if err != nil {
		return nil, err
	}
	client := hass.NewClient(serverURL, cfg.HomeAssistant.Token)

	ledgerPath, err := config.LedgerPath()
	if err != nil {
		return nil, err
	}
	ledger, err := translator.NewLedger(ledgerPath)
	if err != nil {
		return nil, err
	}

	ttl, err := cfg.NotesTTL()
	if err != nil {
		return nil, err
	}
	cachePath, err := config.NotesCachePath()
	if err != nil {
		return nil, err
	}
	cache, err := translator.NewNotesCache(cachePath, translator.WithTTL(ttl))
	if err != nil {
		return nil, err
	}
	if err := cache.Prune(); err != nil {
		logger.Warn("pruning notes cache: %v", err)
	}

	rulesPath, err := config.RulesPath()
	if err != nil {
		return nil, err
	}
	rules, err := translator.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}

	limiter := translator.NewRateLimiter(httpSpacing, agentSpacing)
	httpClient := translator.NewRetryableHTTPClient(translator.DefaultRetryConfig())
	releases := translator.NewReleaseClient(httpClient, cfg.GitHub.Token)
	resolver := translator.NewResolver(releases, httpClient, cache, limiter)

	agent := translator.NewAgent(client, cfg.Translator.Agent, cfg.Prompt(),
		translator.WithAgentLimiter(limiter))
	writer := translator.NewWriter(client, cfg.Translator.MirrorAttributes)

	watcher := translator.NewWatcher(client, resolver, agent, writer, ledger,
		translator.WithRules(rules),
		translator.WithReapply(cfg.Translator.Reapply))

	logger.Debug("pipeline ready: server=%s agent=%s rules=%d ledger=%d",
		serverURL, cfg.Translator.Agent, len(rules.Entities), ledger.Len())

	return &pipeline{
		cfg:     cfg,
		client:  client,
		watcher: watcher,
		ledger:  ledger,
	}, nil
}
