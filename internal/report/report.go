// Package report writes pipeline results as CSV files with a header row and
// a fixed column order.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/usage"
)

// Report file names.
const (
	FeaturesFile = "attribute_mappings_features.csv"
	DistinctFile = "distinct_attribute_values.csv"
	MappingsFile = "exact_ontology_mappings.csv"
)

var (
	KeyUsageHeader    = []string{"key", "frequency", "sample_count", "usage_ratio"}
	SampleUsageHeader = []string{"sample_id", "keys_used", "usage_ratio"}
	PortalUsageHeader = []string{"database", "portal_usage"}
)

// Row is anything that renders as one CSV record.
type Row interface {
	CSVRecord() []string
}

// Writer is an open CSV report.
type Writer struct {
	f    *os.File
	w    *csv.Writer
	path string
	rows int
}

// Create truncates dir/name and writes header.
func Create(dir, name string, header []string) (*Writer, error) {
	return open(dir, name, header, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

// Append opens dir/name for appending. The header is written only when the
// file is new or empty.
func Append(dir, name string, header []string) (*Writer, error) {
	return open(dir, name, header, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func open(dir, name string, header []string, flag int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat report %s: %w", path, err)
	}
	w := &Writer{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := w.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header of %s: %w", path, err)
		}
	}
	return w, nil
}

// Write appends one row.
func (w *Writer) Write(r Row) error {
	return w.WriteRecord(r.CSVRecord())
}

func (w *Writer) WriteRecord(rec []string) error {
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	w.rows++
	return nil
}

// Flush pushes buffered rows to the file.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func (w *Writer) Path() string { return w.path }

// Rows is the number of data rows written through w.
func (w *Writer) Rows() int { return w.rows }

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing %s: %w", w.path, err)
	}
	return w.f.Close()
}

// WriteUsage writes the key, sample and portal tables of rep as
// <schema>_key_usage.csv, <schema>_sample_usage.csv and
// <schema>_portal_usage.csv, returning the paths written.
func WriteUsage(dir string, rep *usage.Report) ([]string, error) {
	schema := rep.Schema.String()
	var paths []string

	write := func(name string, header []string, records [][]string) error {
		w, err := Create(dir, schema+"_"+name, header)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := w.WriteRecord(rec); err != nil {
				w.Close()
				return err
			}
		}
		paths = append(paths, w.Path())
		return w.Close()
	}

	keys := make([][]string, 0, len(rep.Keys))
	for _, k := range rep.Keys {
		keys = append(keys, []string{k.Key, strconv.Itoa(k.Frequency), strconv.Itoa(k.SampleCount), formatFloat(k.UsageRatio)})
	}
	if err := write("key_usage.csv", KeyUsageHeader, keys); err != nil {
		return paths, err
	}

	samples := make([][]string, 0, len(rep.Samples))
	for _, s := range rep.Samples {
		samples = append(samples, []string{s.SampleID, strconv.Itoa(s.KeysUsed), formatFloat(s.UsageRatio)})
	}
	if err := write("sample_usage.csv", SampleUsageHeader, samples); err != nil {
		return paths, err
	}

	portal := [][]string{{schema, formatFloat(rep.Portal)}}
	if err := write("portal_usage.csv", PortalUsageHeader, portal); err != nil {
		return paths, err
	}
	return paths, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
