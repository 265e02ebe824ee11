// Package test holds the conformance suite every [storage.DocumentReader] backend runs.
package test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/docchain/docchain/pkg/storage"
)

// ReaderFactory builds a reader that serves exactly docs. Every document in the fixture
// carries a single "content" field, which all backends can represent.
type ReaderFactory func(t *testing.T, docs map[string]*storage.Document) storage.DocumentReader

// Fixture returns the documents used by the suite.
func Fixture() map[string]*storage.Document {
	return map[string]*storage.Document{
		"1":         contentDocument("a"),
		"2":         contentDocument("b"),
		"doc-three": contentDocument("third document"),
	}
}

func contentDocument(content string) *storage.Document {
	doc := storage.NewDocument()
	doc.Set("content", content)
	return doc
}

func RunAllTests(t *testing.T, newReader ReaderFactory) {
	t.Run("TestGetFound", func(t *testing.T) { GetFoundTest(t, newReader) })
	t.Run("TestGetNotFound", func(t *testing.T) { GetNotFoundTest(t, newReader) })
	t.Run("TestGetIsRepeatable", func(t *testing.T) { GetIsRepeatableTest(t, newReader) })
	t.Run("TestGetEmptyStore", func(t *testing.T) { GetEmptyStoreTest(t, newReader) })
}

func GetFoundTest(t *testing.T, newReader ReaderFactory) {
	ctx := context.Background()
	fixture := Fixture()
	reader := newReader(t, fixture)
	defer reader.Close()

	for id, want := range fixture {
		t.Run(id, func(t *testing.T) {
			res, err := reader.Get(ctx, id)
			require.NoError(t, err)

			got, ok := res.Document()
			require.True(t, ok, "expected document %q to be found", id)
			if diff := cmp.Diff(want.ToMap(), got.ToMap()); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func GetNotFoundTest(t *testing.T, newReader ReaderFactory) {
	ctx := context.Background()
	reader := newReader(t, Fixture())
	defer reader.Close()

	for _, id := range []string{
		"",
		"3",
		"doc",
		"1 OR 1=1",
		"1' OR '1'='1",
		"1; DROP TABLE documents",
	} {
		res, err := reader.Get(ctx, id)
		require.NoError(t, err, "id %q", id)
		require.False(t, res.IsFound(), "id %q should not be found", id)
	}
}

func GetIsRepeatableTest(t *testing.T, newReader ReaderFactory) {
	ctx := context.Background()
	reader := newReader(t, Fixture())
	defer reader.Close()

	first, err := reader.Get(ctx, "2")
	require.NoError(t, err)
	second, err := reader.Get(ctx, "2")
	require.NoError(t, err)

	firstDoc, ok := first.Document()
	require.True(t, ok)
	secondDoc, ok := second.Document()
	require.True(t, ok)
	require.Equal(t, firstDoc.ToMap(), secondDoc.ToMap())
}

func GetEmptyStoreTest(t *testing.T, newReader ReaderFactory) {
	reader := newReader(t, map[string]*storage.Document{})
	defer reader.Close()

	res, err := reader.Get(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, res.IsFound())
}
