package main

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/features"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/report"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/logger"
)

func featuresCmd(a *app) *cobra.Command {
	var (
		schemaName     string
		attributesFile string
	)

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Score allow-listed fields against the ontology index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "features-cmd")

			path := a.cfg.Reports.AttributesFile
			if attributesFile != "" {
				path = attributesFile
			}
			al, err := features.LoadAllowList(path)
			if err != nil {
				return err
			}
			log.Info("allow-list loaded", "path", path, "fields", len(al.Entries))

			_, col, closeStore, err := a.openCollection(ctx, schemaName)
			if err != nil {
				return err
			}
			defer closeStore()

			scorer, release, err := a.newScorer()
			if err != nil {
				return err
			}
			defer release()

			w, err := report.Create(a.cfg.Reports.Dir, report.FeaturesFile, features.Header)
			if err != nil {
				return err
			}
			sum, err := features.NewRunner(col, scorer, a.metrics).Features(ctx, al, func(row features.Row) error {
				if err := w.Write(row); err != nil {
					return err
				}
				return w.Flush()
			})
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.Info("features written", "path", w.Path(), "rows", w.Rows(), "processed", sum.Processed, "skipped", sum.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "ncbi", "schema whose values are scored (ncbi, ebi)")
	cmd.Flags().StringVar(&attributesFile, "attributes", "", "override reports.attributesFile")
	return cmd
}

func mappingsCmd(a *app) *cobra.Command {
	var schemaName string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Report the dominant exact-match ontology of every stored field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "mappings-cmd")

			_, col, closeStore, err := a.openCollection(ctx, schemaName)
			if err != nil {
				return err
			}
			defer closeStore()

			scorer, release, err := a.newScorer()
			if err != nil {
				return err
			}
			defer release()

			w, err := report.Append(a.cfg.Reports.Dir, report.MappingsFile, features.MappingHeader)
			if err != nil {
				return err
			}
			sum, err := features.NewRunner(col, scorer, a.metrics).Mappings(ctx, func(row features.MappingRow) error {
				if err := w.Write(row); err != nil {
					return err
				}
				return w.Flush()
			})
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.Info("mappings written", "path", w.Path(), "rows", w.Rows(), "fields", sum.Processed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "ncbi", "schema whose fields are mapped (ncbi, ebi)")
	return cmd
}

func distinctCmd(a *app) *cobra.Command {
	var schemaName string

	cmd := &cobra.Command{
		Use:   "distinct",
		Short: "Report value and distinct-value counts of every stored field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "distinct-cmd")

			_, col, closeStore, err := a.openCollection(ctx, schemaName)
			if err != nil {
				return err
			}
			defer closeStore()

			w, err := report.Create(a.cfg.Reports.Dir, report.DistinctFile, features.DistinctHeader)
			if err != nil {
				return err
			}
			sum, err := features.NewRunner(col, nil, a.metrics).Distinct(ctx, func(row features.DistinctRow) error {
				return w.Write(row)
			})
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.Info("distinct values written", "path", w.Path(), "rows", w.Rows(), "fields", sum.Processed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "ncbi", "schema whose fields are counted (ncbi, ebi)")
	return cmd
}
