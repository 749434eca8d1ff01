package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// TermSink receives the documents of one ontology file. Flush is called once
// after the file's last document.
type TermSink interface {
	Put(ctx context.Context, doc searchindex.Document) error
	Flush(ctx context.Context) error
}

// Options locates the inputs of a load.
type Options struct {
	// Dir holds one marker file per ontology.
	Dir string
	// FilterDir holds prefLabel_<file>.hdt.nt and notation_<file>.hdt.nt.
	FilterDir     string
	ProgressEvery int
	Metrics       *metrics.Metrics
}

// FileFailure records why one ontology file was not loaded.
type FileFailure struct {
	File string
	Err  error
}

// Result summarises a load.
type Result struct {
	FilesLoaded int
	Failures    []FileFailure
	Documents   int
	// Skipped counts subjects without a usable qname.
	Skipped int
}

// Loader writes the terms of every ontology file to a sink.
type Loader struct {
	opts   Options
	sink   TermSink
	logger *slog.Logger
}

func NewLoader(sink TermSink, opts Options) *Loader {
	if opts.FilterDir == "" {
		opts.FilterDir = filepath.Join(opts.Dir, "filter")
	}
	return &Loader{
		opts:   opts,
		sink:   sink,
		logger: slog.Default().With("component", "ontology-loader"),
	}
}

// Run loads every regular file in Dir, in name order. A file that fails to
// parse or write is logged and recorded in the result; the run continues with
// the next file. Only an unreadable Dir or a cancelled context fail the run.
func (l *Loader) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	entries, err := os.ReadDir(l.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing ontologies: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	res := &Result{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l.logger.Info("loading ontology", "file", name)
		docs, skipped, err := l.LoadFile(ctx, name)
		res.Documents += docs
		res.Skipped += skipped
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			l.logger.Error("ontology failed", "file", name, "documents", docs, "error", err)
			l.opts.Metrics.OntologyFile("failed")
			res.Failures = append(res.Failures, FileFailure{File: name, Err: err})
			continue
		}
		l.opts.Metrics.OntologyFile("loaded")
		res.FilesLoaded++
	}
	l.opts.Metrics.ObserveStage("load_ontologies", start)
	l.logger.Info("ontologies loaded",
		"files", res.FilesLoaded,
		"failed", len(res.Failures),
		"documents", res.Documents,
		"skipped", res.Skipped,
	)
	return res, nil
}

// LoadFile parses both graphs of one ontology file and writes a document per
// subject. It returns the documents written before any error.
func (l *Loader) LoadFile(ctx context.Context, name string) (int, int, error) {
	g := NewGraph()
	for _, prefix := range []string{"prefLabel_", "notation_"} {
		if err := g.ParseFile(filepath.Join(l.opts.FilterDir, prefix+name+".hdt.nt")); err != nil {
			return 0, 0, err
		}
	}
	l.logger.Debug("ontology graphs parsed", "file", name, "subjects", g.Len())

	ontology := OntologyName(name)
	written, skipped := 0, 0
	for _, t := range g.Terms() {
		doc := t.Document(ontology)
		if doc.Qname == "" {
			l.logger.Warn("term has no qname", "uri", t.URI, "file", name)
			skipped++
			continue
		}
		if err := l.sink.Put(ctx, doc); err != nil {
			return written, skipped, fmt.Errorf("writing term %s: %w", doc.Qname, err)
		}
		written++
		l.opts.Metrics.TermIndexed()
		if l.opts.ProgressEvery > 0 && written%l.opts.ProgressEvery == 0 {
			l.logger.Info("inserted docs", "file", name, "count", written)
		}
	}
	if err := l.sink.Flush(ctx); err != nil {
		return written, skipped, fmt.Errorf("flushing terms: %w", err)
	}
	return written, skipped, nil
}
