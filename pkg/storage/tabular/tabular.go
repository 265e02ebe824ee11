// Package tabular reads documents from a flat delimited file whose rows carry an id column
// and a content column.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/storage"
)

const (
	backendName = "tabular"

	DefaultIDColumn      = "document_id"
	DefaultContentColumn = "content"
)

var tracer = otel.Tracer("docchain/pkg/storage/tabular")

func startTrace(ctx context.Context, name string, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tabular."+name, trace.WithAttributes(attribute.String("path", path)))
}

// Option configures a [Reader].
type Option func(*Reader)

// WithIDColumn sets the header name of the id column.
func WithIDColumn(name string) Option {
	return func(r *Reader) {
		r.idColumn = name
	}
}

// WithContentColumn sets the header name of the content column.
func WithContentColumn(name string) Option {
	return func(r *Reader) {
		r.contentColumn = name
	}
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.comma = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// Reader scans a tabular file for every Get. The file is opened and closed within each
// call, so each lookup costs O(rows).
type Reader struct {
	path          string
	idColumn      string
	contentColumn string
	comma         rune
	logger        logger.Logger
}

var _ storage.DocumentReader = (*Reader)(nil)

// New creates a [Reader] for the file at path. The file is not touched until the first Get.
func New(path string, opts ...Option) (*Reader, error) {
	r := &Reader{
		path:          path,
		idColumn:      DefaultIDColumn,
		contentColumn: DefaultContentColumn,
		comma:         ',',
		logger:        logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.path == "" {
		return nil, storage.ConfigurationError("tabular reader requires a file path")
	}
	if r.idColumn == "" || r.contentColumn == "" {
		return nil, storage.ConfigurationError("tabular reader requires id and content column names")
	}
	if r.idColumn == r.contentColumn {
		return nil, storage.ConfigurationError("tabular id and content columns must differ, both are %q", r.idColumn)
	}

	return r, nil
}

// Path returns the file the reader scans.
func (r *Reader) Path() string {
	return r.path
}

// Get see [storage.DocumentReader].Get.
func (r *Reader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	ctx, span := startTrace(ctx, "Get", r.path)
	defer span.End()

	res := storage.NotFound()
	err := r.scan(ctx, func(id, content string) bool {
		if id != documentID {
			return true
		}
		doc := storage.NewDocument()
		doc.Set(r.contentColumn, content)
		res = storage.Found(doc)
		return false
	})
	if err != nil {
		return storage.NotFound(), err
	}

	return res, nil
}

// ReadAll reads the whole file into one document mapping every row id to its content,
// in file order. A repeated id keeps its first position and takes the last content.
func (r *Reader) ReadAll(ctx context.Context) (*storage.Document, error) {
	ctx, span := startTrace(ctx, "ReadAll", r.path)
	defer span.End()

	doc := storage.NewDocument()
	err := r.scan(ctx, func(id, content string) bool {
		doc.Set(id, content)
		return true
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Close see [storage.DocumentReader].Close. The reader holds no open resources between calls.
func (r *Reader) Close() {}

// scan calls visit for every row until visit returns false or the file ends.
func (r *Reader) scan(ctx context.Context, visit func(id, content string) bool) error {
	f, err := os.Open(r.path)
	if err != nil {
		return storage.ConnectionFaultError(backendName, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.WarnWithContext(ctx, "failed to close tabular file", zap.String("path", r.path), zap.Error(err))
		}
	}()

	cr := csv.NewReader(f)
	cr.Comma = r.comma
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return storage.ConnectionFaultError(backendName, fmt.Errorf("%s: missing header row", r.path))
		}
		return storage.ConnectionFaultError(backendName, err)
	}

	idIdx, contentIdx := -1, -1
	for i, name := range header {
		switch name {
		case r.idColumn:
			idIdx = i
		case r.contentColumn:
			contentIdx = i
		}
	}
	if idIdx < 0 || contentIdx < 0 {
		return storage.ConnectionFaultError(backendName,
			fmt.Errorf("%s: header must contain columns %q and %q", r.path, r.idColumn, r.contentColumn))
	}

	for {
		if err := ctx.Err(); err != nil {
			return storage.ConnectionFaultError(backendName, err)
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return storage.ConnectionFaultError(backendName, err)
		}

		if !visit(record[idIdx], record[contentIdx]) {
			return nil
		}
	}
}
