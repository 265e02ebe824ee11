package storagewrappers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/docchain/docchain/internal/build"
)

const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeFault    = "fault"
	outcomeError    = "error"
)

var (
	documentLookupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "document_lookup_count",
		Help:      "The total number of document lookups by outcome.",
	}, []string{"outcome"})

	documentCacheTotalCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "document_cache_total_count",
		Help:      "The total number of lookups served through the document cache.",
	})

	documentCacheHitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "document_cache_hit_count",
		Help:      "The total number of document cache hits, including cached misses.",
	})
)
