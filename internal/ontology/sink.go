package ontology

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

// IndexSink writes terms straight into a search index.
type IndexSink struct {
	Index searchindex.Index
}

func (s IndexSink) Put(ctx context.Context, doc searchindex.Document) error {
	return s.Index.Upsert(ctx, doc)
}

func (s IndexSink) Flush(ctx context.Context) error {
	return s.Index.Flush(ctx)
}

// Publisher is the producing side of the term topic. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// DefaultBatchSize is the number of terms published per write.
const DefaultBatchSize = 500

// PublishSink hands terms to the term topic, keyed by qname so that later
// writes of a qname are consumed after earlier ones.
type PublishSink struct {
	pub       Publisher
	batchSize int
	pending   []kafka.Event
}

func NewPublishSink(pub Publisher, batchSize int) *PublishSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PublishSink{pub: pub, batchSize: batchSize}
}

func (s *PublishSink) Put(ctx context.Context, doc searchindex.Document) error {
	s.pending = append(s.pending, kafka.Event{Key: doc.ID(), Value: doc})
	if len(s.pending) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

func (s *PublishSink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	return s.pub.PublishBatch(ctx, batch)
}

// IndexHandler consumes published terms into idx. Undecodable or invalid
// terms are logged and dropped; index failures stop the consumer so the
// message is redelivered.
func IndexHandler(idx searchindex.Index, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "term-indexer")
	return func(ctx context.Context, key, value []byte) error {
		doc, err := kafka.DecodeJSON[searchindex.Document](value)
		if err == nil {
			err = doc.Validate()
		}
		if err != nil {
			logger.Warn("dropping malformed term", "key", string(key), "error", err)
			return nil
		}
		if err := idx.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("indexing term %s: %w", key, err)
		}
		m.TermIndexed()
		logger.Debug("term indexed", "qname", doc.Qname, "ontology", doc.Ontology)
		return nil
	}
}
