package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/logger"
)

func extractCmd(a *app) *cobra.Command {
	var (
		schemas  []string
		ncbiFile string
		ebiFile  string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Stream the gzip XML dumps into the backing store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "extract")

			files := map[record.Schema]string{
				record.SchemaNCBI: a.cfg.Ingest.NCBIFile,
				record.SchemaEBI:  a.cfg.Ingest.EBIFile,
			}
			if ncbiFile != "" {
				files[record.SchemaNCBI] = ncbiFile
			}
			if ebiFile != "" {
				files[record.SchemaEBI] = ebiFile
			}

			st, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			for _, name := range schemas {
				schema, err := record.ParseSchema(name)
				if err != nil {
					return err
				}
				ex, err := extractor.ForSchema(schema)
				if err != nil {
					return err
				}
				batch, err := st.NewBatchInserter(schema, a.cfg.Ingest.BatchSize)
				if err != nil {
					return err
				}

				log.Info("extraction starting", "schema", schema, "file", files[schema], "batch_size", a.cfg.Ingest.BatchSize)
				res, err := ingest.RunFile(ctx, files[schema], ex, batch, ingest.Options{
					ProgressEvery: a.cfg.Ingest.ProgressEvery,
					Metrics:       a.metrics,
				})
				if err != nil {
					return fmt.Errorf("extracting %s after %d committed records: %w", schema, batch.Committed(), err)
				}
				log.Info("extraction complete",
					"schema", schema,
					"samples", res.Stats.Samples,
					"records", res.Stats.Records,
					"skipped_missing_key", res.Stats.SkippedMissingKey,
					"skipped_missing_id", res.Stats.SkippedMissingID,
					"duration", res.Duration,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", []string{"ncbi", "ebi"}, "schemas to extract (ncbi, ebi)")
	cmd.Flags().StringVar(&ncbiFile, "ncbi-file", "", "override ingest.ncbiFile")
	cmd.Flags().StringVar(&ebiFile, "ebi-file", "", "override ingest.ebiFile")
	return cmd
}
