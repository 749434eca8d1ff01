// Package usage computes how metadata keys are used across samples: key
// frequency, per-sample key coverage and the portal-wide mean coverage.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// Source streams (key, sample) pairs.
type Source interface {
	ForEachKeySample(ctx context.Context, fn func(key, sampleID string) error) error
}

// KeyUsage describes one distinct key.
type KeyUsage struct {
	Key         string  `json:"key"`
	Frequency   int     `json:"frequency"`
	SampleCount int     `json:"sample_count"`
	UsageRatio  float64 `json:"usage_ratio"`
}

// SampleUsage describes one distinct sample.
type SampleUsage struct {
	SampleID   string  `json:"sample_id"`
	KeysUsed   int     `json:"keys_used"`
	UsageRatio float64 `json:"usage_ratio"`
}

// Report is the result of one pass.
type Report struct {
	Schema           record.Schema `json:"schema"`
	Keys             []KeyUsage    `json:"keys"`
	Samples          []SampleUsage `json:"samples"`
	Portal           float64       `json:"portal_usage"`
	RecordsProcessed int           `json:"records_processed"`
	Truncated        bool          `json:"truncated"`
}

// Options bounds and instruments a pass.
type Options struct {
	Schema record.Schema
	// MaxRecords caps the number of pairs consumed; 0 means no cap.
	MaxRecords    int
	ProgressEvery int
	Metrics       *metrics.Metrics
}

// tally is the aggregation state of a single run.
type tally struct {
	frequency  map[string]int
	sampleKeys map[string]map[string]struct{}
	processed  int
}

func newTally() *tally {
	return &tally{
		frequency:  make(map[string]int),
		sampleKeys: make(map[string]map[string]struct{}),
	}
}

func (t *tally) add(key, sampleID string) {
	t.frequency[key]++
	keys, ok := t.sampleKeys[sampleID]
	if !ok {
		keys = make(map[string]struct{})
		t.sampleKeys[sampleID] = keys
	}
	keys[key] = struct{}{}
	t.processed++
}

// Compute consumes the source once and derives the usage tables. It returns
// ErrEmptyDenominator when no sample was observed.
func Compute(ctx context.Context, src Source, opts Options) (*Report, error) {
	logger := slog.Default().With("component", "usage", "schema", opts.Schema.String())
	start := time.Now()

	t := newTally()
	truncated := false
	err := src.ForEachKeySample(ctx, func(key, sampleID string) error {
		if opts.MaxRecords > 0 && t.processed >= opts.MaxRecords {
			truncated = true
			return store.ErrStopIteration
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.add(key, sampleID)
		opts.Metrics.UsageRecord(opts.Schema.String())
		if opts.ProgressEvery > 0 && t.processed%opts.ProgressEvery == 0 {
			logger.Info("usage records processed", "count", t.processed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning key/sample pairs: %w", err)
	}
	if len(t.sampleKeys) == 0 {
		return nil, apperrors.Newf(apperrors.ErrEmptyDenominator, apperrors.ExitNoData,
			"no samples observed for %s", opts.Schema)
	}

	report := &Report{
		Schema:           opts.Schema,
		Keys:             t.keyUsage(),
		Samples:          t.sampleUsage(),
		RecordsProcessed: t.processed,
		Truncated:        truncated,
	}
	report.Portal = portal(report.Samples)
	opts.Metrics.ObserveStage("usage_"+opts.Schema.String(), start)

	logger.Info("usage computed",
		"records", t.processed,
		"keys", len(report.Keys),
		"samples", len(report.Samples),
		"portal_usage", report.Portal,
		"truncated", truncated,
	)
	return report, nil
}

func (t *tally) keyUsage() []KeyUsage {
	sampleCount := make(map[string]int, len(t.frequency))
	for _, keys := range t.sampleKeys {
		for k := range keys {
			sampleCount[k]++
		}
	}
	total := float64(len(t.sampleKeys))
	out := make([]KeyUsage, 0, len(t.frequency))
	for k, f := range t.frequency {
		out = append(out, KeyUsage{
			Key:         k,
			Frequency:   f,
			SampleCount: sampleCount[k],
			UsageRatio:  float64(f) / total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageRatio != out[j].UsageRatio {
			return out[i].UsageRatio > out[j].UsageRatio
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (t *tally) sampleUsage() []SampleUsage {
	total := float64(len(t.frequency))
	out := make([]SampleUsage, 0, len(t.sampleKeys))
	for id, keys := range t.sampleKeys {
		out = append(out, SampleUsage{
			SampleID:   id,
			KeysUsed:   len(keys),
			UsageRatio: float64(len(keys)) / total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageRatio != out[j].UsageRatio {
			return out[i].UsageRatio > out[j].UsageRatio
		}
		return out[i].SampleID < out[j].SampleID
	})
	return out
}

func portal(samples []SampleUsage) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s.UsageRatio
	}
	return sum / float64(len(samples))
}
