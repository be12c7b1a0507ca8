package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/pario-ai/inserter/pkg/cache"
	"github.com/pario-ai/inserter/pkg/config"
	"github.com/pario-ai/inserter/pkg/kv"
	kvsqlite "github.com/pario-ai/inserter/pkg/kv/sqlite"
	"github.com/pario-ai/inserter/pkg/logging"
	"github.com/pario-ai/inserter/pkg/orchestrator"
	"github.com/pario-ai/inserter/pkg/provider"
	"github.com/pario-ai/inserter/pkg/settings"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	medium  kv.Store
	client  *provider.Client
	session *orchestrator.Session
	closer  io.Closer
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.LoadOrDefault(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	var medium kv.Store
	var closer io.Closer = nopCloser{}
	if flags.ephemeral {
		medium = kv.NewMemory(cfg.Cache.MaxBytes)
	} else {
		st, err := kvsqlite.New(cfg.DBPath, cfg.Cache.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("init kv store: %w", err)
		}
		medium, closer = st, st
	}

	client := provider.New(cfg.Provider.URL, cfg.Provider.Model,
		provider.WithTimeout(cfg.Provider.Timeout),
		provider.WithLogger(log.With().Str("component", "provider").Logger()),
	)

	c := cache.New(medium,
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithEvictFraction(cfg.Cache.EvictFraction),
		cache.WithLogger(log.With().Str("component", "cache").Logger()),
	)

	opts := []orchestrator.Option{
		orchestrator.WithLogger(log.With().Str("component", "orchestrator").Logger()),
	}
	if cfg.Cache.Coalesce {
		opts = append(opts, orchestrator.WithCoalescing())
	}
	orch := orchestrator.New(c, client, opts...)

	sess, err := orchestrator.NewSession(orch, settings.New(medium, cfg.Settings.Key))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		medium:  medium,
		client:  client,
		session: sess,
		closer:  closer,
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
