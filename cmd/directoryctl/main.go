package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zatekoja/cartosante/internal/adapters/database"
	"github.com/zatekoja/cartosante/internal/adapters/providers/geosync"
	"github.com/zatekoja/cartosante/internal/adapters/search"
	"github.com/zatekoja/cartosante/internal/adapters/sources"
	"github.com/zatekoja/cartosante/internal/application/services"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	"github.com/zatekoja/cartosante/pkg/config"
	"github.com/zatekoja/cartosante/pkg/retry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "directoryctl",
		Short:        "Maintenance commands for the provider directory",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import external geodata for a province",
		RunE: func(cmd *cobra.Command, args []string) error {
			province, _ := cmd.Flags().GetString("province")
			city, _ := cmd.Flags().GetString("city")
			persist, _ := cmd.Flags().GetBool("persist")

			env, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.close()

			syncer := services.NewSyncService(
				geosync.NewHTTPSyncProvider(env.cfg.GeoSync.FunctionURL, env.cfg.GeoSync.APIKey, env.cfg.GeoSync.Timeout),
				env.directory,
				nil,
				nil,
			)
			report, err := syncer.Sync(cmd.Context(), providers.SyncScope{Province: province, City: city, Persist: persist})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().String("province", "", "province to import")
	cmd.Flags().String("city", "", "restrict the import to one city")
	cmd.Flags().Bool("persist", false, "store imported rows and reload the directory")
	_ = cmd.MarkFlagRequired("province")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Load the directory and rebuild the Typesense collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.close()

			n, err := env.directory.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"indexed": n})
		},
	}
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Build the aggregate once and print the load report",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.close()

			report, err := env.directory.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger("directoryctl", cfg.Log.Environment, cfg.Log.Level)

			version, err := postgres.Migrate(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]uint{"schema_version": version})
		},
	}
}

type environment struct {
	cfg       *config.Config
	directory *services.DirectoryService
	close     func()
}

// setup connects to Postgres, and to Typesense when withIndex is set, and
// builds an uncached directory over every source.
func setup(ctx context.Context, withIndex bool) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	observability.InitLogger("directoryctl", cfg.Log.Environment, cfg.Log.Level)

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	var searchRepo repositories.ProviderSearchRepository
	if withIndex {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, retry.DefaultConfig())
		if err != nil {
			pgClient.Close()
			return nil, fmt.Errorf("connect to typesense: %w", err)
		}
		searchRepo = search.NewTypesenseAdapter(tsClient)
	}

	directory := services.NewDirectoryService(services.DirectoryDeps{
		Sources: []repositories.ProviderSource{
			sources.NewEstablishmentSource(database.NewEstablishmentAdapter(pgClient)),
			sources.NewCuratedSource(cfg.Directory.CuratedDatasetPath),
			sources.NewGeodataSource(database.NewGeodataAdapter(pgClient), repositories.GeodataScope{}),
		},
		SearchRepo: searchRepo,
	}, services.DirectoryOptions{
		Locale:               cfg.Directory.Locale,
		DefaultMaxDistanceKm: cfg.Directory.DefaultMaxDistanceKm,
		LoadTimeout:          cfg.Directory.LoadTimeout,
	})

	return &environment{
		cfg:       cfg,
		directory: directory,
		close:     func() { _ = pgClient.Close() },
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
