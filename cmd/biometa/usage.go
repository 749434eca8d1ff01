package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/report"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/usage"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/logger"
)

func usageCmd(a *app) *cobra.Command {
	var (
		schemaName string
		maxRecords int
		noSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Compute key usage statistics for one schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "usage-cmd")

			st, col, closeStore, err := a.openCollection(ctx, schemaName)
			if err != nil {
				return err
			}
			defer closeStore()

			limit := a.cfg.Usage.MaxRecords
			if cmd.Flags().Changed("max-records") {
				limit = maxRecords
			}
			if limit < 0 {
				return fmt.Errorf("--max-records must not be negative")
			}

			rep, err := usage.Compute(ctx, col, usage.Options{
				Schema:        col.Schema(),
				MaxRecords:    limit,
				ProgressEvery: a.cfg.Usage.ProgressEvery,
				Metrics:       a.metrics,
			})
			if err != nil {
				return err
			}

			paths, err := report.WriteUsage(a.cfg.Reports.Dir, rep)
			if err != nil {
				return err
			}
			log.Info("usage reports written", "files", paths, "portal_usage", rep.Portal)

			prev, err := st.LatestSnapshot(ctx, rep.Schema.String())
			if err != nil {
				return err
			}
			if prev != nil {
				var old usage.Report
				if err := json.Unmarshal(prev.Data, &old); err != nil {
					log.Warn("previous usage snapshot unreadable", "run_id", prev.RunID, "error", err)
				} else {
					d := usage.Compare(&old, rep)
					log.Info("usage drift since last snapshot",
						"previous_run", prev.RunID,
						"captured_at", prev.CapturedAt,
						"portal_delta", d.PortalDelta,
						"records_delta", d.RecordsDelta,
						"new_keys", d.NewKeys,
						"dropped_keys", d.DroppedKeys,
					)
				}
			}

			if a.cfg.Usage.SaveSnapshot && !noSnapshot {
				if err := st.SaveSnapshot(ctx, a.runID, rep.Schema.String(), rep); err != nil {
					return err
				}
				log.Info("usage snapshot saved", "schema", rep.Schema)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "ncbi", "schema to analyse (ncbi, ebi)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "override usage.maxRecords; 0 means no cap")
	cmd.Flags().BoolVar(&noSnapshot, "no-snapshot", false, "do not persist the report to usage_snapshots")
	return cmd
}

func snapshotsCmd(a *app) *cobra.Command {
	var (
		schemaName string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List saved usage snapshots for one schema, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			st, col, closeStore, err := a.openCollection(ctx, schemaName)
			if err != nil {
				return err
			}
			defer closeStore()

			snaps, err := st.ListSnapshots(ctx, col.Schema().String(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCAPTURED AT\tPORTAL USAGE\tRECORDS\tKEYS")
			for _, snap := range snaps {
				var rep usage.Report
				if err := json.Unmarshal(snap.Data, &rep); err != nil {
					logger.FromContext(ctx).Warn("skipping unreadable snapshot", "run_id", snap.RunID, "error", err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%.6g\t%d\t%d\n",
					snap.RunID, snap.CapturedAt.UTC().Format(time.RFC3339), rep.Portal, rep.RecordsProcessed, len(rep.Keys))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&schemaName, "schema", "s", "ncbi", "schema whose snapshots are listed (ncbi, ebi)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of snapshots to list")
	return cmd
}
