package storagewrappers

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/docchain/docchain/pkg/storage"
)

var _ storage.DocumentReader = (*InstrumentedReader)(nil)

type InstrumentedReader struct {
	storage.DocumentReader
	countLookups  atomic.Uint32
	countFound    atomic.Uint32
	countNotFound atomic.Uint32
	countFaults   atomic.Uint32
}

// NewInstrumentedReader creates a new instance of InstrumentedReader that wraps the specified reader
// and counts lookups by outcome, both per instance and in the process wide prometheus counters.
func NewInstrumentedReader(wrapped storage.DocumentReader) *InstrumentedReader {
	return &InstrumentedReader{
		DocumentReader: wrapped,
	}
}

type Metrics struct {
	LookupCount   uint32
	FoundCount    uint32
	NotFoundCount uint32
	FaultCount    uint32
}

func (m *InstrumentedReader) GetMetrics() Metrics {
	return Metrics{
		LookupCount:   m.countLookups.Load(),
		FoundCount:    m.countFound.Load(),
		NotFoundCount: m.countNotFound.Load(),
		FaultCount:    m.countFaults.Load(),
	}
}

// Get see [storage.DocumentReader].Get.
func (m *InstrumentedReader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	m.countLookups.Add(1)

	res, err := m.DocumentReader.Get(ctx, documentID)
	switch {
	case errors.Is(err, storage.ErrConnectionFault):
		m.countFaults.Add(1)
		documentLookupCounter.WithLabelValues(outcomeFault).Inc()
	case err != nil:
		documentLookupCounter.WithLabelValues(outcomeError).Inc()
	case res.IsFound():
		m.countFound.Add(1)
		documentLookupCounter.WithLabelValues(outcomeFound).Inc()
	default:
		m.countNotFound.Add(1)
		documentLookupCounter.WithLabelValues(outcomeNotFound).Inc()
	}

	return res, err
}
