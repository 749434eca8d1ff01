// Package elastic is the Elasticsearch backend of the ontology term index.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

// Config locates the cluster and the term index.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// Analyzer is the built-in analyzer applied to the text fields when the
	// index is created.
	Analyzer  string
	Transport http.RoundTripper
}

// Index talks to one Elasticsearch index.
type Index struct {
	client   *elasticsearch.Client
	name     string
	analyzer string
	logger   *slog.Logger
}

// New builds a client. It does not contact the cluster.
func New(cfg Config) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	a := cfg.Analyzer
	if a == "" {
		a = analyzer.Standard
	}
	return &Index{
		client:   client,
		name:     cfg.Index,
		analyzer: a,
		logger:   slog.Default().With("component", "elastic-index", "index", cfg.Index),
	}, nil
}

// Mapping returns the index body: verbatim keyword fields for exact lookups
// and analyzed text fields for fuzzy ones.
func (i *Index) Mapping() map[string]any {
	text := map[string]any{"type": "text", "analyzer": i.analyzer}
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"class_name":       text,
				"class_name_exact": keyword,
				"qname":            text,
				"qname_exact":      keyword,
				"ontology":         keyword,
				"prefLabel":        text,
				"prefLabel_exact":  keyword,
				"notation":         text,
				"notation_exact":   keyword,
			},
		},
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("checking index", err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("checking index %s: status %d: %w", i.name, res.StatusCode, apperrors.ErrIndexUnavailable)
	}

	body, err := json.Marshal(i.Mapping())
	if err != nil {
		return fmt.Errorf("marshaling mapping: %w", err)
	}
	res, err = i.client.Indices.Create(i.name,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return unavailable("creating index", err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("creating index", res)
	}
	i.logger.Info("index created", "analyzer", i.analyzer)
	return nil
}

// Upsert writes doc under its qname, replacing any earlier document.
func (i *Index) Upsert(ctx context.Context, doc searchindex.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document %s: %w", doc.ID(), err)
	}
	res, err := i.client.Index(i.name, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(doc.ID()),
	)
	if err != nil {
		return unavailable("indexing document", err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("indexing document "+doc.ID(), res)
	}
	return nil
}

// QueryBody renders the search request for q. Both modes wrap a should-list
// over the qname, notation and prefLabel fields in a must-clause, and AND an
// ontology terms filter when an allow-list is given.
func QueryBody(q searchindex.Query) map[string]any {
	kind, suffix := "term", "_exact"
	if q.Mode == searchindex.Fuzzy {
		kind, suffix = "match", ""
	}
	should := make([]any, 0, 3)
	for _, f := range []string{"qname", "notation", "prefLabel"} {
		should = append(should, map[string]any{kind: map[string]any{f + suffix: q.Value}})
	}
	must := []any{
		map[string]any{"bool": map[string]any{"should": should}},
	}
	if len(q.Ontologies) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"ontology": q.Ontologies}})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string               `json:"_id"`
			Score  float64              `json:"_score"`
			Source searchindex.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs q and returns hits in the cluster's relevance order.
func (i *Index) Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error) {
	body, err := json.Marshal(QueryBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}
	opts := []func(*esapi.SearchRequest){
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(bytes.NewReader(body)),
	}
	if q.Size > 0 {
		opts = append(opts, i.client.Search.WithSize(q.Size))
	}
	res, err := i.client.Search(opts...)
	if err != nil {
		return nil, unavailable("searching", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, responseError("searching", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	hits := make([]searchindex.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, searchindex.Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

// Flush refreshes the index so recent writes become searchable.
func (i *Index) Flush(ctx context.Context) error {
	res, err := i.client.Indices.Refresh(
		i.client.Indices.Refresh.WithContext(ctx),
		i.client.Indices.Refresh.WithIndex(i.name),
	)
	if err != nil {
		return unavailable("refreshing index", err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("refreshing index", res)
	}
	return nil
}

func (i *Index) Close() error {
	return nil
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrIndexUnavailable, err)
}

func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: %s: %s: %w", op, res.Status(), bytes.TrimSpace(msg), apperrors.ErrIndexUnavailable)
}

var _ searchindex.Index = (*Index)(nil)
