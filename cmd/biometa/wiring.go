package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/analyzer"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/elastic"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex/local"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/sqlite"
)

// openStore connects to the configured backing store and creates its tables.
// The returned function closes the connection.
func (a *app) openStore(ctx context.Context) (*store.Store, func() error, error) {
	dialect, err := store.ParseDialect(a.cfg.Store.Driver)
	if err != nil {
		return nil, nil, err
	}

	var db *sql.DB
	switch dialect {
	case store.Postgres:
		err := resilience.Retry(ctx, "connect postgres", startupRetry(apperrors.ErrStoreUnavailable), func(context.Context) error {
			client, err := postgres.New(a.cfg.Postgres)
			if err != nil {
				return err
			}
			db = client.DB
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	case store.SQLite:
		db, err = sqlite.Open(a.cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
	}

	st := store.New(db, dialect)
	if err := st.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db.Close, nil
}

// openCollection opens the store and returns the view of one schema.
func (a *app) openCollection(ctx context.Context, schemaName string) (*store.Store, store.Collection, func() error, error) {
	schema, err := record.ParseSchema(schemaName)
	if err != nil {
		return nil, nil, nil, err
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	col, err := st.Collection(schema)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	return st, col, closeStore, nil
}

// openIndex builds the configured term index backend.
func openIndex(cfg config.SearchConfig) (searchindex.Index, error) {
	switch cfg.Backend {
	case "elasticsearch":
		idx, err := elastic.New(elastic.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Index:     cfg.Index,
			Analyzer:  cfg.Analyzer,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "local":
		a, err := analyzer.ByName(cfg.Analyzer)
		if err != nil {
			return nil, err
		}
		idx, err := local.Open(filepath.Join(cfg.DataDir, cfg.Index, local.SnapshotFile), a)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("search backend %q: %w", cfg.Backend, apperrors.ErrUnknownBackend)
	}
}

// startupRetry retries only failures that wrap sentinel, which the clients
// return when the service could not be reached.
func startupRetry(sentinel error) resilience.RetryConfig {
	return resilience.RetryConfig{
		JitterFraction: 0.1,
		Retryable:      func(err error) bool { return errors.Is(err, sentinel) },
	}
}

// indexCreator is implemented by backends that need the index created
// before the first write.
type indexCreator interface {
	EnsureIndex(ctx context.Context) error
}

// openWritableIndex opens the index and makes sure it exists.
func openWritableIndex(ctx context.Context, cfg config.SearchConfig) (searchindex.Index, error) {
	idx, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := idx.(indexCreator); ok {
		if err := resilience.Retry(ctx, "ensure index", startupRetry(apperrors.ErrIndexUnavailable), c.EnsureIndex); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// openCache connects the match cache when it is enabled. It returns nil and a
// no-op close function otherwise.
func (a *app) openCache() (*matcher.Cache, func() error, error) {
	if !a.cfg.Redis.Enabled {
		return nil, func() error { return nil }, nil
	}
	client, err := pkgredis.NewClient(a.cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("match cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Redis.CacheTTL)
	return matcher.NewCache(client, a.cfg.Redis.CacheTTL, a.metrics), client.Close, nil
}

// newScorer opens the index and the optional cache and returns a Scorer over
// them. The returned function releases both.
func (a *app) newScorer() (*matcher.Scorer, func(), error) {
	idx, err := openIndex(a.cfg.Search)
	if err != nil {
		return nil, nil, err
	}
	cache, closeCache, err := a.openCache()
	if err != nil {
		idx.Close()
		return nil, nil, err
	}

	opts := []matcher.Option{
		matcher.WithMetrics(a.metrics),
		matcher.WithSize(a.cfg.Search.MaxHits),
	}
	if cache != nil {
		opts = append(opts, matcher.WithCache(cache))
	}

	release := func() {
		if cache != nil {
			hits, misses := cache.Stats()
			slog.Info("match cache stats", "hits", hits, "misses", misses)
		}
		if err := closeCache(); err != nil {
			slog.Error("closing cache", "error", err)
		}
		if err := idx.Close(); err != nil {
			slog.Error("closing index", "error", err)
		}
	}
	return matcher.New(idx, opts...), release, nil
}

// invalidateCache drops cached match results after the term index changed.
// It still runs when ctx was cancelled by a shutdown signal.
func (a *app) invalidateCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	cache, closeCache, err := a.openCache()
	if err != nil {
		slog.Warn("match cache not invalidated", "error", err)
		return
	}
	defer closeCache()
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		slog.Warn("match cache not invalidated", "error", err)
	}
}
