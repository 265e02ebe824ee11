// Package retriever fetches batches of documents through a chain of readers.
package retriever

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/redis"
	"github.com/docchain/docchain/pkg/storage/storagewrappers"
	"github.com/docchain/docchain/pkg/storage/tabular"
	"github.com/docchain/docchain/pkg/telemetry"
)

var tracer = otel.Tracer("docchain/pkg/retriever")

// FileReader reads a whole flat file into one document mapping every id to its content.
type FileReader interface {
	ReadAll(ctx context.Context) (*storage.Document, error)
}

// FileReaderFactory opens the file named name for whole-file reads.
type FileReaderFactory func(name string) (FileReader, error)

// App answers batch lookups with a single reader, usually the head of a chain.
type App struct {
	reader        storage.DocumentReader
	newFileReader FileReaderFactory
	logger        logger.Logger
}

type AppOption func(*App)

func WithLogger(l logger.Logger) AppOption {
	return func(a *App) {
		a.logger = l
	}
}

// WithFileReader replaces the factory used by GetDocumentsFromFile.
// The default reads CSV files with the default column names.
func WithFileReader(f FileReaderFactory) AppOption {
	return func(a *App) {
		a.newFileReader = f
	}
}

// New returns an App answering lookups with reader. The App owns reader.
// A nil reader is allowed for an App that only serves whole-file reads.
func New(reader storage.DocumentReader, opts ...AppOption) *App {
	a := &App{
		reader: reader,
		newFileReader: func(name string) (FileReader, error) {
			r, err := tabular.New(name)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		logger: logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Reader returns the reader the App asks.
func (a *App) Reader() storage.DocumentReader {
	return a.reader
}

// GetDocumentsFromIDs looks up every id in order and returns the outcome per id.
// Unknown ids map to NotFound. The first error aborts the batch.
func (a *App) GetDocumentsFromIDs(ctx context.Context, ids []string) (map[string]storage.LookupResult, error) {
	ctx, span := tracer.Start(ctx, "GetDocumentsFromIDs", trace.WithAttributes(
		attribute.Int("ids", len(ids)),
	))
	defer span.End()

	if a.reader == nil {
		return nil, storage.ConfigurationError("app has no reader")
	}

	results := make(map[string]storage.LookupResult, len(ids))
	for _, id := range ids {
		res, err := a.reader.Get(ctx, id)
		if err != nil {
			telemetry.TraceError(span, err)
			return nil, fmt.Errorf("get document %q: %w", id, err)
		}
		results[id] = res
	}

	a.logger.DebugWithContext(ctx, "documents retrieved", zap.Int("requested", len(ids)), zap.Int("distinct", len(results)))
	return results, nil
}

// GetDocumentsFromFile reads the whole file and returns a single entry keyed by name.
func (a *App) GetDocumentsFromFile(ctx context.Context, name string) (map[string]*storage.Document, error) {
	ctx, span := tracer.Start(ctx, "GetDocumentsFromFile", trace.WithAttributes(
		attribute.String("name", name),
	))
	defer span.End()

	r, err := a.newFileReader(name)
	if err != nil {
		return nil, err
	}

	doc, err := r.ReadAll(ctx)
	if err != nil {
		telemetry.TraceError(span, err)
		return nil, fmt.Errorf("read file %q: %w", name, err)
	}

	return map[string]*storage.Document{name: doc}, nil
}

// Close closes the reader and every reader chained after it.
func (a *App) Close() {
	if a.reader != nil {
		a.reader.Close()
	}
}

func maybeCache(useCache bool, reader storage.DocumentReader) storage.DocumentReader {
	if useCache {
		return storagewrappers.NewCachedReader(reader)
	}
	return reader
}

// NewKeyedStoreApp connects a keyed store reader built from keyedOpts and returns an App over it.
func NewKeyedStoreApp(ctx context.Context, useCache bool, keyedOpts []redis.Option, opts ...AppOption) (*App, error) {
	keyed, err := redis.New(keyedOpts...)
	if err != nil {
		return nil, err
	}
	if err := keyed.Connect(ctx); err != nil {
		return nil, err
	}

	return New(maybeCache(useCache, keyed), opts...), nil
}

// NewTabularApp returns an App over the flat file at path.
func NewTabularApp(useCache bool, path string, tabularOpts []tabular.Option, opts ...AppOption) (*App, error) {
	file, err := tabular.New(path, tabularOpts...)
	if err != nil {
		return nil, err
	}

	return New(maybeCache(useCache, file), opts...), nil
}

// NewChainApp returns an App over a keyed store that falls back to file on a miss.
func NewChainApp(ctx context.Context, useCache bool, keyedOpts []redis.Option, file storage.DocumentReader, opts ...AppOption) (*App, error) {
	if file == nil {
		return nil, storage.ConfigurationError("chain app needs a file reader")
	}

	keyedOpts = append(keyedOpts[:len(keyedOpts):len(keyedOpts)], redis.WithSuccessor(file))
	keyed, err := redis.New(keyedOpts...)
	if err != nil {
		return nil, err
	}
	if err := keyed.Connect(ctx); err != nil {
		return nil, err
	}

	return New(maybeCache(useCache, keyed), opts...), nil
}
