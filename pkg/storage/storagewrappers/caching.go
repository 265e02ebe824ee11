package storagewrappers

import (
	"context"

	"github.com/docchain/docchain/pkg/storage"
)

var _ storage.DocumentReader = (*CachedReader)(nil)

// CachedReader memoizes every lookup result of the wrapped reader, NotFound included,
// for as long as it lives. Errors are returned as is and never cached.
// It is not safe for concurrent use.
type CachedReader struct {
	storage.DocumentReader
	entries map[string]storage.LookupResult
}

// NewCachedReader returns a wrapper over inner that calls inner at most once per
// distinct document id. There is no eviction and no TTL.
func NewCachedReader(inner storage.DocumentReader) *CachedReader {
	return &CachedReader{
		DocumentReader: inner,
		entries:        make(map[string]storage.LookupResult),
	}
}

// Get see [storage.DocumentReader].Get.
func (c *CachedReader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	documentCacheTotalCounter.Inc()

	if res, ok := c.entries[documentID]; ok {
		documentCacheHitCounter.Inc()
		return res, nil
	}

	res, err := c.DocumentReader.Get(ctx, documentID)
	if err != nil {
		return storage.NotFound(), err
	}

	c.entries[documentID] = res
	return res, nil
}

// Size returns the number of memoized ids.
func (c *CachedReader) Size() int {
	return len(c.entries)
}

// Close drops the memoized results and closes the wrapped reader.
func (c *CachedReader) Close() {
	clear(c.entries)
	c.DocumentReader.Close()
}
