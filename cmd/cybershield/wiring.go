package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/hakim/cybershield/internal/config"
	"github.com/hakim/cybershield/internal/enrich"
	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/pipeline"
	"github.com/hakim/cybershield/internal/storage"
	"github.com/hakim/cybershield/internal/tools"
	"go.uber.org/zap"
)

// openStore opens the configured job store backend
func openStore(c *config.Config) (storage.Store, error) {
	switch c.Store {
	case config.StoreBolt:
		if err := storage.EnsureDir(filepath.Dir(c.DBPath)); err != nil {
			return nil, err
		}
		return storage.OpenBolt(c.DBPath)
	default:
		return storage.NewMemoryStore(), nil
	}
}

// buildRunners creates a runner for every enabled tool, in the order
// zap, nmap, nuclei.
func buildRunners(c *config.Config) ([]pipeline.RunnerSpec, error) {
	interval, err := c.Artifact.IntervalDuration()
	if err != nil {
		return nil, err
	}

	type entry struct {
		tool config.ToolConfig
		make func(tools.Options) tools.Runner
	}
	entries := []entry{
		{c.Tools.Zap, func(o tools.Options) tools.Runner { return tools.NewZapRunner(o) }},
		{c.Tools.Nmap, func(o tools.Options) tools.Runner { return tools.NewNmapRunner(o) }},
		{c.Tools.Nuclei, func(o tools.Options) tools.Runner { return tools.NewNucleiRunner(o) }},
	}

	var specs []pipeline.RunnerSpec
	for _, e := range entries {
		if !e.tool.Enabled {
			continue
		}
		timeout, err := e.tool.TimeoutDuration()
		if err != nil {
			return nil, err
		}
		specs = append(specs, pipeline.RunnerSpec{
			Runner: e.make(tools.Options{
				Binary:           e.tool.Path,
				Args:             e.tool.Args,
				ArtifactAttempts: c.Artifact.Attempts,
				ArtifactInterval: interval,
			}),
			Timeout: timeout,
		})
	}
	return specs, nil
}

// buildEnricher returns the Gemini-backed summarizer, or one that records
// enrichment as disabled when no API key is configured. The returned close
// function releases the Gemini client.
func buildEnricher(ctx context.Context, c *config.Config, log *zap.Logger) (*enrich.Client, func() error, error) {
	timeout, err := c.Enrichment.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	opts := enrich.Options{Timeout: timeout, MaxFindings: c.Enrichment.MaxFindings}

	if c.Enrichment.APIKey == "" {
		log.Info("no enrichment API key configured, AI summaries disabled")
		return enrich.NewClient(enrich.Disabled{}, opts, log), func() error { return nil }, nil
	}

	gen, err := enrich.NewGeminiGenerator(ctx, c.Enrichment.APIKey, c.Enrichment.Model)
	if err != nil {
		return nil, nil, err
	}
	return enrich.NewClient(gen, opts, log), gen.Close, nil
}

// app bundles the long-lived pieces shared by serve and scan
type app struct {
	store        storage.Store
	orchestrator *pipeline.Orchestrator
	closeEnrich  func() error
}

func newApp(ctx context.Context, c *config.Config, log *zap.Logger) (*app, error) {
	if err := storage.EnsureDir(c.ScanDir); err != nil {
		return nil, fmt.Errorf("creating scan directory: %w", err)
	}

	store, err := openStore(c)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	runners, err := buildRunners(c)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("configuring tools: %w", err)
	}

	enricher, closeEnrich, err := buildEnricher(ctx, c, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("configuring enrichment: %w", err)
	}

	var fallback findings.Fallback
	if c.SyntheticFallback {
		fallback = findings.NewSyntheticGenerator(0)
	}

	o, err := pipeline.New(pipeline.Options{
		Store:         store,
		Runners:       runners,
		Fallback:      fallback,
		Enricher:      enricher,
		Notify:        &pipeline.NotifyConfig{WebhookURL: c.Notify.WebhookURL, Client: &http.Client{Timeout: 10 * time.Second}},
		Scope:         pipeline.ScopeConfig{AllowedDomains: c.Scope.AllowedDomains},
		ScanDir:       c.ScanDir,
		DefaultPreset: c.DefaultPreset,
		Logger:        log,
	})
	if err != nil {
		closeEnrich()
		store.Close()
		return nil, err
	}

	return &app{store: store, orchestrator: o, closeEnrich: closeEnrich}, nil
}

// Close stops background work, then releases the store and Gemini client.
func (a *app) Close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := a.orchestrator.Shutdown(ctx)
	if cerr := a.closeEnrich(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
