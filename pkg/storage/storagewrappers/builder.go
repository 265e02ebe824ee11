package storagewrappers

import (
	"github.com/docchain/docchain/pkg/storage"
)

// NewChain links readers in order, so that readers[i] falls back to readers[i+1], and returns the head.
// Get on the result returns the first Found answer, or NotFound once every reader missed.
func NewChain(policy storage.FallbackPolicy, readers ...storage.DocumentReader) (storage.DocumentReader, error) {
	if len(readers) == 0 {
		return nil, storage.ConfigurationError("a chain needs at least one reader")
	}
	for i, r := range readers {
		if r == nil {
			return nil, storage.ConfigurationError("chain reader %d is nil", i)
		}
	}

	head := readers[len(readers)-1]
	for i := len(readers) - 2; i >= 0; i-- {
		head = Link(readers[i], head, policy)
	}
	return head, nil
}
