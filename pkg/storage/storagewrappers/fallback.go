package storagewrappers

import (
	"context"

	"github.com/docchain/docchain/pkg/storage"
)

var _ storage.DocumentReader = (*linkedReader)(nil)

// linkedReader adds a successor to a reader that has no native support for one.
type linkedReader struct {
	storage.DocumentReader
	successor storage.Successor
}

// Link returns a reader that asks reader first and hands the lookup to next according to policy.
// A nil next returns reader unchanged.
func Link(reader, next storage.DocumentReader, policy storage.FallbackPolicy) storage.DocumentReader {
	if next == nil {
		return reader
	}
	return &linkedReader{
		DocumentReader: reader,
		successor:      storage.NewSuccessor(next, policy),
	}
}

// Get see [storage.DocumentReader].Get.
func (l *linkedReader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	res, err := l.DocumentReader.Get(ctx, documentID)
	return l.successor.Resolve(ctx, documentID, res, err)
}

// Close closes the reader and then every reader after it.
func (l *linkedReader) Close() {
	l.DocumentReader.Close()
	l.successor.Close()
}
