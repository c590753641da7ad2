package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/kgraph/internal/api"
	"github.com/abhisek/kgraph/internal/config"
	"github.com/abhisek/kgraph/internal/loader"
	"github.com/abhisek/kgraph/internal/logging"
	"github.com/abhisek/kgraph/internal/store"
)

// deps holds what every command needs. Close releases them.
type deps struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
	client *api.Client
}

// setup loads config with flag overrides, then opens the logger, the store
// and the backend client.
func setup(cmd *cobra.Command) (*deps, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logger, err := logging.New(logging.Options{Path: logPath, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}

	client, err := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Retry:   cfg.API.Retry,
		Breaker: cfg.API.Breaker,
		Logger:  logger,
	})
	if err != nil {
		st.Close()
		_ = logger.Sync()
		return nil, err
	}

	logger.Debug("kgraph starting",
		zap.String("command", cmd.CommandPath()),
		zap.String("api", cfg.API.BaseURL),
		zap.String("db", dbPath),
	)
	return &deps{cfg: cfg, logger: logger, store: st, client: client}, nil
}

func (d *deps) Close() {
	if err := d.store.Close(); err != nil {
		d.logger.Warn("close store", zap.Error(err))
	}
	_ = d.logger.Sync()
}

// newLoader returns a loader backed by the shared client and store.
func (d *deps) newLoader() *loader.Loader {
	return loader.New(loader.Options{
		Fetcher:       d.client,
		Snapshots:     d.store.Snapshots(),
		Events:        d.store.Events(),
		Mastery:       d.cfg.Mastery,
		KeepSnapshots: d.cfg.Store.KeepSnapshots,
		Logger:        d.logger,
	})
}

// loadConfig reads the config file and applies --api on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if u, _ := cmd.Flags().GetString("api"); u != "" {
		cfg.API.BaseURL = u
		if err := config.Validate(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then KGRAPH_DB and the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path, store.EnsureDir(cfg.Store.Path)
	}
	return store.DefaultDBPath()
}

// classFlag returns --class, falling back to the configured class.
func classFlag(cmd *cobra.Command, cfg config.Config) (string, error) {
	class, _ := cmd.Flags().GetString("class")
	if class == "" {
		class = cfg.ClassID
	}
	if class == "" {
		return "", fmt.Errorf("a class is required: pass --class or set class_id in the config")
	}
	return class, nil
}
