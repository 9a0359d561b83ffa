package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"report-composer-go/config"
	"report-composer-go/db"
)

var (
	logger *zap.Logger

	configPath string
	verbose    bool
	storeFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "report-composer",
	Short: "Compose student progress reports and export them as images",
	Long: `report-composer serves the report editing workspace over HTTP.

Students are picked from a roster, report fields are edited for the whole
selection or one student at a time, and each student's report is exported
as a JPEG (one student) or a zip of JPEGs (several students).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "state backend: redis or memory (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importRosterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if storeFlag != "" {
		cfg.Store.Backend = storeFlag
	}
	return cfg, cfg.Validate()
}

// openState connects the configured backend. The returned func releases it.
func openState(ctx context.Context, cfg config.StoreConfig) (*db.StateService, func(), error) {
	switch cfg.Backend {
	case config.StoreMemory:
		logger.Warn("using in-memory state; nothing survives a restart")
		return db.NewStateService(db.NewMemoryBackend(), logger), func() {}, nil
	default:
		client, err := db.InitializeRedisClient(ctx, db.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("error closing Redis client", zap.Error(err))
			}
		}
		return db.NewStateService(db.NewRedisBackend(client), logger), closeFn, nil
	}
}
