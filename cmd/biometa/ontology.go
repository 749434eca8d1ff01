package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/ontology"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/logger"
)

func loadOntologiesCmd(a *app) *cobra.Command {
	var (
		publish   bool
		dir       string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "load-ontologies",
		Short: "Load ontology terms into the search index",
		Long: `load-ontologies reads one marker file per ontology and the matching
prefLabel_<file>.hdt.nt and notation_<file>.hdt.nt graphs, and writes one term
document per subject. With --publish the documents go to the ontology-terms
topic and are indexed by index-terms instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "load-ontologies")

			opts := ontology.Options{
				Dir:           a.cfg.Ontology.Dir,
				FilterDir:     a.cfg.Ontology.FilterDir,
				ProgressEvery: a.cfg.Ontology.ProgressEvery,
				Metrics:       a.metrics,
			}
			if dir != "" {
				opts.Dir = dir
				opts.FilterDir = ""
			}

			var (
				sink      ontology.TermSink
				closeSink func() error
			)
			if publish {
				producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.OntologyTerms)
				sink = ontology.NewPublishSink(producer, batchSize)
				closeSink = producer.Close
				log.Info("publishing terms", "topic", a.cfg.Kafka.Topics.OntologyTerms)
			} else {
				idx, err := openWritableIndex(ctx, a.cfg.Search)
				if err != nil {
					return err
				}
				sink = ontology.IndexSink{Index: idx}
				closeSink = func() error {
					logIndexSize(log, idx)
					return idx.Close()
				}
			}

			res, err := ontology.NewLoader(sink, opts).Run(ctx)
			if cerr := closeSink(); cerr != nil && err == nil {
				err = fmt.Errorf("closing term sink: %w", cerr)
			}
			if err != nil {
				return err
			}
			for _, f := range res.Failures {
				log.Warn("ontology not loaded", "file", f.File, "error", f.Err)
			}
			if !publish && res.Documents > 0 {
				a.invalidateCache(ctx)
			}
			if res.FilesLoaded == 0 && len(res.Failures) > 0 {
				return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitFailure,
					"none of %d ontology files could be loaded", len(res.Failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "publish terms to Kafka instead of writing the index")
	cmd.Flags().StringVar(&dir, "dir", "", "override ontology.dir; the filter directory becomes <dir>/filter")
	cmd.Flags().IntVar(&batchSize, "batch-size", ontology.DefaultBatchSize, "terms per Kafka write with --publish")
	return cmd
}

func indexTermsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index-terms",
		Short: "Consume published ontology terms into the search index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx).With("component", "index-terms")

			idx, err := openWritableIndex(ctx, a.cfg.Search)
			if err != nil {
				return err
			}

			consumer := kafka.NewConsumer(a.cfg.Kafka, a.cfg.Kafka.Topics.OntologyTerms,
				ontology.IndexHandler(idx, a.metrics),
				kafka.WithCommitBatch(a.cfg.Kafka.CommitBatch, a.cfg.Kafka.CommitInterval, idx.Flush),
			)
			log.Info("term indexer starting",
				"topic", a.cfg.Kafka.Topics.OntologyTerms,
				"group", a.cfg.Kafka.ConsumerGroup,
				"commit_batch", a.cfg.Kafka.CommitBatch,
			)
			runErr := consumer.Start(ctx)

			if err := consumer.Close(); err != nil {
				log.Error("closing consumer", "error", err)
			}
			if err := idx.Close(); err != nil && runErr == nil {
				runErr = fmt.Errorf("closing index: %w", err)
			}
			logIndexSize(log, idx)
			a.invalidateCache(ctx)
			log.Info("term indexer stopped")
			return runErr
		},
	}
}

// logIndexSize reports the document count of backends that keep it locally.
func logIndexSize(log *slog.Logger, idx searchindex.Index) {
	if sized, ok := idx.(interface{ Len() int }); ok {
		log.Info("term index size", "docs", sized.Len())
	}
}
