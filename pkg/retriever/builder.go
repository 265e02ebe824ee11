package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docchain/docchain/internal/config"
	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/memory"
	"github.com/docchain/docchain/pkg/storage/mysql"
	"github.com/docchain/docchain/pkg/storage/postgres"
	"github.com/docchain/docchain/pkg/storage/redis"
	"github.com/docchain/docchain/pkg/storage/sqlcommon"
	"github.com/docchain/docchain/pkg/storage/sqlite"
	"github.com/docchain/docchain/pkg/storage/storagewrappers"
	"github.com/docchain/docchain/pkg/storage/tabular"
)

// Build verifies cfg and wires the configured backends into a chain, in the order of cfg.Backends.
// Backends are constructed from last to first so that every reader receives its successor at
// construction. The keyed store is connected before Build returns. With cfg.UseCache the head
// is wrapped in a cache, and with cfg.Metrics.Enabled lookups are counted.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	policy := cfg.FallbackPolicy()

	var next storage.DocumentReader
	for i := len(cfg.Backends) - 1; i >= 0; i-- {
		kind := cfg.Backends[i]

		reader, err := newReader(ctx, cfg, kind, next, policy, log)
		if err != nil {
			if next != nil {
				next.Close()
			}
			return nil, fmt.Errorf("build %s reader: %w", kind, err)
		}
		next = reader
	}

	head := maybeCache(cfg.UseCache, next)
	if cfg.Metrics.Enabled {
		head = storagewrappers.NewInstrumentedReader(head)
	}

	log.Info("document chain ready",
		zap.Strings("backends", cfg.Backends),
		zap.Bool("cache", cfg.UseCache),
		zap.Stringer("fallback", policy),
	)

	return New(head,
		WithLogger(log),
		WithFileReader(TabularFileReader(cfg.Tabular, log)),
	), nil
}

// TabularFileReader returns a factory opening flat files with the column names of cfg.
func TabularFileReader(cfg config.TabularConfig, log logger.Logger) FileReaderFactory {
	return func(name string) (FileReader, error) {
		r, err := tabular.New(name,
			tabular.WithIDColumn(cfg.IDColumn),
			tabular.WithContentColumn(cfg.ContentColumn),
			tabular.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func newReader(
	ctx context.Context,
	cfg *config.Config,
	kind string,
	next storage.DocumentReader,
	policy storage.FallbackPolicy,
	log logger.Logger,
) (storage.DocumentReader, error) {
	switch kind {
	case config.BackendKeyed:
		keyed, err := redis.New(
			redis.WithAddr(cfg.Redis.Addr),
			redis.WithDatabase(cfg.Redis.DB),
			redis.WithUserCredential(cfg.Redis.Username),
			redis.WithPassCredential(cfg.Redis.Password),
			redis.WithCollection(cfg.Redis.Collection),
			redis.WithConnectTimeout(cfg.Redis.ConnectTimeout),
			redis.WithLogger(log),
			redis.WithSuccessor(next),
			redis.WithFallbackPolicy(policy),
		)
		if err != nil {
			return nil, err
		}
		if err := keyed.Connect(ctx); err != nil {
			return nil, err
		}
		return keyed, nil

	case config.BackendMemory:
		return memory.New(
			memory.WithDocuments(memoryDocuments(cfg.Memory.Documents)),
			memory.WithSuccessor(next),
			memory.WithFallbackPolicy(policy),
		), nil

	case config.BackendTabular:
		file, err := tabular.New(cfg.Tabular.Path,
			tabular.WithIDColumn(cfg.Tabular.IDColumn),
			tabular.WithContentColumn(cfg.Tabular.ContentColumn),
			tabular.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return storagewrappers.Link(file, next, policy), nil

	case config.BackendRelational:
		relational, err := newRelationalReader(cfg, log)
		if err != nil {
			return nil, err
		}
		return storagewrappers.Link(relational, next, policy), nil
	}

	return nil, storage.ConfigurationError("unknown backend kind %q", kind)
}

func newRelationalReader(cfg *config.Config, log logger.Logger) (storage.DocumentReader, error) {
	rc := cfg.Relational
	opts := []sqlcommon.DatastoreOption{
		sqlcommon.WithHost(rc.Host),
		sqlcommon.WithUsername(rc.Username),
		sqlcommon.WithPassword(rc.Password),
		sqlcommon.WithDatabase(rc.Database),
		sqlcommon.WithTable(rc.Table),
		sqlcommon.WithIDColumn(rc.IDColumn),
		sqlcommon.WithLogger(log),
		sqlcommon.WithMaxOpenConns(rc.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(rc.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(rc.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(rc.ConnMaxLifetime),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, sqlcommon.WithMetrics())
	}
	dsCfg := sqlcommon.NewConfig(opts...)

	var (
		reader *sqlcommon.Reader
		err    error
	)
	switch rc.Engine {
	case config.EngineMySQL:
		reader, err = mysql.New(dsCfg)
	case config.EnginePostgres:
		reader, err = postgres.New(dsCfg)
	case config.EngineSQLite:
		reader, err = sqlite.New(dsCfg)
	default:
		return nil, storage.ConfigurationError("unknown relational engine %q", rc.Engine)
	}
	if err != nil {
		return nil, err
	}

	return reader, nil
}

func memoryDocuments(in map[string]map[string]interface{}) map[string]*storage.Document {
	docs := make(map[string]*storage.Document, len(in))
	for id, fields := range in {
		docs[id] = storage.NewSortedDocument(fields)
	}
	return docs
}
