package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aouyang1/go-demand-forecaster/config"
	"github.com/aouyang1/go-demand-forecaster/scheduler"
	"github.com/aouyang1/go-demand-forecaster/server"
	"github.com/aouyang1/go-demand-forecaster/store"
)

var (
	// Global flags
	configFile string
	envFile    string
	sourceURL  string
	sourcePath string
	showReport bool

	// Entity flags
	medicine string
	region   string
	periods  int
	outPath  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "demandforecaster",
		Short:         "Monthly medicine demand forecasts per region",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before environment overrides")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "source-url", "", "CSV dataset url, overrides the config")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "source-path", "", "CSV dataset path, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&showReport, "report", false, "print the load report to stderr")

	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(seasonalCmd())
	rootCmd.AddCommand(performanceCmd())
	rootCmd.AddCommand(entitiesCmd())
	rootCmd.AddCommand(plotCmd())
	rootCmd.AddCommand(serveCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg, err := config.LoadWithEnv(configFile)
	if err != nil {
		return nil, err
	}
	if sourceURL != "" {
		cfg.Source.URL = sourceURL
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}
	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if showReport {
		if err := a.report.TablePrint(os.Stderr); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func entityKey() store.EntityKey {
	return store.EntityKey{Category: medicine, Locality: region}
}

func addEntityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&medicine, "medicine", "m", "", "medicine name")
	cmd.Flags().StringVarP(&region, "region", "r", "", "region name")
	_ = cmd.MarkFlagRequired("medicine")
	_ = cmd.MarkFlagRequired("region")
}

func writeJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast monthly demand for a medicine and region",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.f.Forecast(cmd.Context(), entityKey(), periods)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addEntityFlags(cmd)
	cmd.Flags().IntVarP(&periods, "periods", "p", 12, "number of months to forecast")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the last twelve months of actual and fitted demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.f.HistoricalFit(cmd.Context(), entityKey())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addEntityFlags(cmd)
	return cmd
}

func seasonalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seasonal",
		Short: "Show average demand per season",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), a.f.SeasonalPatterns(entityKey()))
		},
	}
	addEntityFlags(cmd)
	return cmd
}

func performanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Show in-sample accuracy metrics of the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.f.Performance(cmd.Context(), entityKey())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addEntityFlags(cmd)
	return cmd
}

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List every medicine and region in the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			keys := a.store.Keys()
			out := make([]server.Entity, 0, len(keys))
			for _, k := range keys {
				out = append(out, server.Entity{Medicine: k.Category, Region: k.Locality})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func plotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the fit, forecast and seasonal chart to an html file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd.Context())
			if err != nil {
				return err
			}
			file, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer file.Close()
			return a.f.PlotForecast(cmd.Context(), file, entityKey(), periods)
		},
	}
	addEntityFlags(cmd)
	cmd.Flags().IntVarP(&periods, "periods", "p", 12, "number of months to forecast")
	cmd.Flags().StringVarP(&outPath, "out", "o", "forecast.html", "output html path")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setupApp(ctx)
			if err != nil {
				return err
			}

			if a.cfg.Scheduler.Enabled {
				reloader := scheduler.NewReloader(a.fetcher, a.reg, a.log, a.loadOpts...)
				sched, err := scheduler.New(a.cfg.Scheduler.Spec, reloader, a.cfg.Source.Timeout, a.log)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop(context.Background())
			}

			srv := server.New(a.f, &server.Config{
				Addr:            a.cfg.Server.Addr,
				ReadTimeout:     a.cfg.Server.ReadTimeout,
				WriteTimeout:    a.cfg.Server.WriteTimeout,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
				MaxHorizon:      a.cfg.Server.MaxHorizon,
			}, server.WithLogger(a.log), server.WithMetrics(a.rec.Handler()))
			return srv.Run(ctx)
		},
	}
}
