package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitewatch-parser/internal/app"
	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/fetcher"
	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
	_ "sitewatch-parser/internal/storage/all"
)

const defaultConfigPath = "configs/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sitewatch",
	Short:         "sitewatch extracts data points from websites listed in a spreadsheet and reports average prices.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML config file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime собирает всё нужное одной команде.
type runtime struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	logger  *observability.Logger
	source  fetcher.PageSource
	repo    storage.Repository
	service *app.Service
}

// bootstrap загружает конфиг и поднимает логгер, хранилище и Service.
func bootstrap(cmd *cobra.Command) (*runtime, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.LoadOrDefault(configPath, explicit)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability)
	ctx, cancel := app.GracefulShutdown(cmd.Context(), logger)

	repo, err := storage.Open(ctx, storage.Config{
		Driver:         cfg.Storage.Driver,
		DSN:            cfg.Storage.DSN,
		Table:          cfg.Storage.Table,
		CommandTimeout: cfg.GetCommandTimeout(),
	}, logger.With("component", "storage"))
	if err != nil {
		cancel()
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	source := fetcher.NewPageSource(cfg, logger.With("component", "fetcher"))

	logger.Info("Started",
		"command", cmd.Name(),
		"storage_driver", cfg.Storage.Driver,
		"table", cfg.Storage.Table,
		"rod_enabled", cfg.Rod.Enabled,
	)

	return &runtime{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		source:  source,
		repo:    repo,
		service: app.Build(cfg, source, repo, logger),
	}, nil
}

func (rt *runtime) Close() {
	rt.cancel()
	if err := rt.source.Close(); err != nil {
		rt.logger.Error("Failed to close page source", "error", err.Error())
	}
	if err := rt.repo.Close(); err != nil {
		rt.logger.Error("Failed to close storage", "error", err.Error())
	}
	_ = rt.logger.Close()
}
