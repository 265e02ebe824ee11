// Package storage contains the document reader contract and the types shared by every backend.
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks DocumentReader
package storage

import (
	"context"
)

// DocumentReader fetches a single document by its id from one backend.
type DocumentReader interface {
	// Get returns Found(document) when the id exists and NotFound() when it does not.
	// Unknown ids never produce an error. A non-nil error wraps either ErrConnectionFault,
	// when the backend could not be reached, or ErrConfiguration, when the reader was
	// used before it was ready.
	Get(ctx context.Context, documentID string) (LookupResult, error)

	// Close releases any resources held by the reader, including those of its successor.
	Close()
}

// LookupResult is the outcome of a single Get: either Found with a document or NotFound.
// The zero value is NotFound.
type LookupResult struct {
	doc *Document
}

// Found returns a LookupResult holding doc. A nil doc is treated as an empty document.
func Found(doc *Document) LookupResult {
	if doc == nil {
		doc = NewDocument()
	}
	return LookupResult{doc: doc}
}

// NotFound returns the LookupResult for a missing document.
func NotFound() LookupResult {
	return LookupResult{}
}

// IsFound reports whether the lookup produced a document.
func (r LookupResult) IsFound() bool {
	return r.doc != nil
}

// Document returns the document and true when found.
func (r LookupResult) Document() (*Document, bool) {
	return r.doc, r.doc != nil
}

// MarshalJSON encodes NotFound as null and Found as the document object.
func (r LookupResult) MarshalJSON() ([]byte, error) {
	if r.doc == nil {
		return []byte("null"), nil
	}
	return r.doc.MarshalJSON()
}

func (r LookupResult) String() string {
	if r.doc == nil {
		return "NotFound"
	}
	return "Found(" + r.doc.String() + ")"
}

// FallbackPolicy decides which outcomes of a reader hand the lookup over to its successor.
type FallbackPolicy int

const (
	// FallbackOnNotFound delegates only on a semantic miss. Faults propagate unchanged.
	FallbackOnNotFound FallbackPolicy = iota
	// FallbackOnFault delegates on a miss and also when the reader fails with ErrConnectionFault.
	FallbackOnFault
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackOnNotFound:
		return "not_found"
	case FallbackOnFault:
		return "fault"
	default:
		return "unknown"
	}
}
