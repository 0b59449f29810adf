package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"SignalRelay/internal/config"
	"SignalRelay/internal/logger"
	"SignalRelay/internal/rowstore"
)

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

func openStore(cfg *config.Config, log zerolog.Logger) (rowstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store, rows are lost on exit")
		return rowstore.NewMemoryStore(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		return rowstore.NewSQLiteStore(cfg.Store.SQLitePath, log), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
