package storage

import (
	"context"
)

// Successor holds the optional next reader of a fallback chain together with the policy
// that decides when to consult it. It is set once at construction and never changed.
type Successor struct {
	next   DocumentReader
	policy FallbackPolicy
}

// NewSuccessor returns a Successor delegating to next. A nil next means "end of chain".
func NewSuccessor(next DocumentReader, policy FallbackPolicy) Successor {
	return Successor{next: next, policy: policy}
}

// Next returns the successor reader, or nil.
func (s Successor) Next() DocumentReader {
	return s.next
}

func (s Successor) Policy() FallbackPolicy {
	return s.policy
}

// ShouldDelegate reports whether the outcome (res, err) of the owning reader hands the lookup over.
func (s Successor) ShouldDelegate(res LookupResult, err error) bool {
	if s.next == nil {
		return false
	}
	if err != nil {
		return s.policy == FallbackOnFault && IsConnectionFault(err)
	}
	return !res.IsFound()
}

// Resolve returns the successor's answer when ShouldDelegate holds, otherwise (res, err) unchanged.
func (s Successor) Resolve(ctx context.Context, documentID string, res LookupResult, err error) (LookupResult, error) {
	if !s.ShouldDelegate(res, err) {
		return res, err
	}
	return s.next.Get(ctx, documentID)
}

// Close closes the successor, if any.
func (s Successor) Close() {
	if s.next != nil {
		s.next.Close()
	}
}
