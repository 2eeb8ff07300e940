package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-widgets/internal/app"
	"github.com/i474232898/weather-widgets/internal/config"
	"github.com/i474232898/weather-widgets/internal/logging"
)

const appName = "weather-widgets"

// New builds the root command. Running it without a subcommand serves HTTP.
func New() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           appName,
		Short:         "Weather widgets backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_PATH", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	serve := newServeCommand()
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCommand(), newWeatherCommand())
	return root
}

func load() (*config.AppConfig, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.AppEnv, level, appName), nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("failed to close widget store", "error", err)
				}
			}()
			return a.Serve(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the widget tables for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.StoreDriver)
			return a.Close()
		},
	}
}

func newWeatherCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "weather <location>",
		Short: "Print current weather for a location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			wx := app.NewWeather(cfg, logger)

			snap, err := wx.Service.Current(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SOURCE\t\t %s\n", snap.Resolved.Source)
			fmt.Fprintf(out, "LOCATION\t %s\n", snap.Resolved.Label())
			fmt.Fprintf(out, "CONDITION\t %s\n", snap.Condition)

			keys := make([]string, 0, len(snap.Current))
			for k := range snap.Current {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%-22s %v %s\n", strings.ToUpper(k), snap.Current[k], snap.CurrentUnits[k])
			}
			return nil
		},
	}
}
