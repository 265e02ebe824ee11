// Package memory provides an in-process keyed document store reader.
package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docchain/docchain/pkg/storage"
)

var tracer = otel.Tracer("docchain/pkg/storage/memory")

// StorageOption configures a [MemoryReader].
type StorageOption func(*MemoryReader)

// MemoryReader is a keyed store held in memory. Get performs a single map lookup and,
// on a miss, hands the lookup to its successor.
type MemoryReader struct {
	documents map[string]*storage.Document
	successor storage.Successor
	next      storage.DocumentReader
	policy    storage.FallbackPolicy
}

var _ storage.DocumentReader = (*MemoryReader)(nil)

// WithDocuments seeds the store.
func WithDocuments(docs map[string]*storage.Document) StorageOption {
	return func(m *MemoryReader) {
		for id, doc := range docs {
			m.documents[id] = doc
		}
	}
}

// WithSuccessor sets the reader consulted when a document is missing.
func WithSuccessor(next storage.DocumentReader) StorageOption {
	return func(m *MemoryReader) {
		m.next = next
	}
}

func WithFallbackPolicy(p storage.FallbackPolicy) StorageOption {
	return func(m *MemoryReader) {
		m.policy = p
	}
}

// New creates a new [MemoryReader].
func New(opts ...StorageOption) *MemoryReader {
	m := &MemoryReader{
		documents: make(map[string]*storage.Document),
		policy:    storage.FallbackOnNotFound,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.successor = storage.NewSuccessor(m.next, m.policy)

	return m
}

// Put stores doc under documentID, replacing any previous document.
func (m *MemoryReader) Put(documentID string, doc *storage.Document) {
	m.documents[documentID] = doc
}

// Get see [storage.DocumentReader].Get.
func (m *MemoryReader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	ctx, span := tracer.Start(ctx, "memory.Get", trace.WithAttributes(attribute.String("document_id", documentID)))
	defer span.End()

	res := storage.NotFound()
	if doc, ok := m.documents[documentID]; ok {
		res = storage.Found(doc)
	}

	return m.successor.Resolve(ctx, documentID, res, nil)
}

// Close see [storage.DocumentReader].Close.
func (m *MemoryReader) Close() {
	m.successor.Close()
}
