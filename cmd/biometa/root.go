package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// app carries what every subcommand shares once the config is loaded.
type app struct {
	configPath string
	logLevel   string

	cfg         *config.Config
	runID       string
	metrics     *metrics.Metrics
	stopMetrics func(context.Context) error
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biometa",
		Short: "Biosample metadata extraction, usage statistics and ontology matching",
		Long: `biometa ingests NCBI and EBI biosample metadata dumps into a backing store,
computes how metadata keys are used across samples, loads ontology terms into
a search index and scores metadata fields against those terms.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			cmd.SetContext(logger.WithRunID(cmd.Context(), a.runID))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		extractCmd(a),
		usageCmd(a),
		snapshotsCmd(a),
		featuresCmd(a),
		mappingsCmd(a),
		distinctCmd(a),
		loadOntologiesCmd(a),
		indexTermsCmd(a),
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.runID = uuid.NewString()

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(prometheus.DefaultRegisterer)
		a.stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	slog.Info("configuration loaded",
		"run_id", a.runID,
		"store", cfg.Store.Driver,
		"search_backend", cfg.Search.Backend,
		"cache", cfg.Redis.Enabled,
	)
	return nil
}

func (a *app) close() {
	if a.stopMetrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.stopMetrics(ctx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}
}
