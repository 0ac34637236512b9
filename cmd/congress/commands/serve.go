package commands

import (
	"context"
	"fmt"

	"github.com/radekpospisil/congress/pkg/api"
	"github.com/radekpospisil/congress/pkg/config"
	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/radekpospisil/congress/pkg/stores"
	"github.com/radekpospisil/congress/pkg/telemetry"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the policy engine server",
		Long: `Run the policy engine with its HTTP API.

The server loads policy files and datasources from the configuration,
restores persisted state when a database is configured, and starts polling
datasources.`,
		Example: `  # Run with defaults on 127.0.0.1:8282
  congress serve

  # Run with a config file
  congress serve --config /etc/congress/congress.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	metrics := telemetry.NewMetrics(cfg.Metrics)

	runtime := policy.NewRuntime(logger, metrics)
	manager := datasource.NewManager(runtime, logger, metrics)

	var store stores.Store
	if cfg.Database.Path != "" {
		sqlStore, err := stores.NewSQLiteStore(stores.Config{
			Path:         cfg.Database.Path,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return err
		}
		if err := sqlStore.Init(ctx); err != nil {
			return err
		}
		defer func() { _ = sqlStore.Close() }()
		if err := sqlStore.Migrate(ctx); err != nil {
			return err
		}
		store = sqlStore
	}

	server := api.NewServer(cfg.Server, runtime, manager, store, metrics, logger)
	if err := server.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	// Datasources declared in the config are added on top of restored ones.
	for _, dc := range cfg.Datasources {
		if _, err := manager.Add(ctx, dc.Spec()); err != nil {
			logger.Warn().Err(err).Str("datasource", dc.Name).Msg("Skipping configured datasource")
		}
	}

	if len(cfg.Policies.Paths) > 0 {
		loader := policy.NewLoader(runtime, logger)
		if _, err := loader.LoadFromPaths(ctx, cfg.Policies.Paths); err != nil {
			return fmt.Errorf("failed to load policies: %w", err)
		}
		if cfg.Policies.Watch {
			if err := loader.Watch(ctx, cfg.Policies.Paths); err != nil {
				return fmt.Errorf("failed to watch policies: %w", err)
			}
			defer func() { _ = loader.StopWatching() }()
		}
	}

	manager.Start(ctx)
	defer manager.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
