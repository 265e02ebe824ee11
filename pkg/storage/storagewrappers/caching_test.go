package storagewrappers

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/docchain/docchain/internal/mocks"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/memory"
)

func document(field, value string) *storage.Document {
	doc := storage.NewDocument()
	doc.Set(field, value)
	return doc
}

func TestCachedReaderMemoizesFound(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	inner := mocks.NewMockDocumentReader(mockController)
	inner.EXPECT().Get(gomock.Any(), "7").Return(storage.Found(document("field", "doc_7")), nil).Times(1)

	cached := NewCachedReader(inner)

	first, err := cached.Get(ctx, "7")
	require.NoError(t, err)
	second, err := cached.Get(ctx, "7")
	require.NoError(t, err)

	require.True(t, first.IsFound())
	require.Equal(t, first, second)
	require.Equal(t, 1, cached.Size())
}

func TestCachedReaderMemoizesNotFound(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	inner := mocks.NewMockDocumentReader(mockController)
	inner.EXPECT().Get(gomock.Any(), "missing").Return(storage.NotFound(), nil).Times(1)

	cached := NewCachedReader(inner)

	for range 3 {
		res, err := cached.Get(ctx, "missing")
		require.NoError(t, err)
		require.False(t, res.IsFound())
	}
	require.Equal(t, 1, cached.Size())
}

func TestCachedReaderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	fault := storage.ConnectionFaultError("test", errors.New("timeout"))
	inner := mocks.NewMockDocumentReader(mockController)
	gomock.InOrder(
		inner.EXPECT().Get(gomock.Any(), "1").Return(storage.NotFound(), fault),
		inner.EXPECT().Get(gomock.Any(), "1").Return(storage.Found(document("field", "doc_1")), nil),
	)

	cached := NewCachedReader(inner)

	_, err := cached.Get(ctx, "1")
	require.ErrorIs(t, err, storage.ErrConnectionFault)
	require.Zero(t, cached.Size())

	res, err := cached.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, res.IsFound())
	require.Equal(t, 1, cached.Size())
}

func TestCachedReaderKeysByID(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedReader(memory.New(memory.WithDocuments(map[string]*storage.Document{
		"1": document("field", "doc_1"),
		"2": document("field", "doc_2"),
	})))
	defer cached.Close()

	for _, id := range []string{"1", "2", "3", "1", "2", "3"} {
		_, err := cached.Get(ctx, id)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cached.Size())

	res, err := cached.Get(ctx, "2")
	require.NoError(t, err)
	doc, ok := res.Document()
	require.True(t, ok)
	value, _ := doc.Get("field")
	require.Equal(t, "doc_2", value)
}

func TestCachedReaderCountsHits(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	inner := mocks.NewMockDocumentReader(mockController)
	inner.EXPECT().Get(gomock.Any(), "1").Return(storage.NotFound(), nil).Times(1)

	totalBefore := testutil.ToFloat64(documentCacheTotalCounter)
	hitsBefore := testutil.ToFloat64(documentCacheHitCounter)

	cached := NewCachedReader(inner)
	_, _ = cached.Get(ctx, "1")
	_, _ = cached.Get(ctx, "1")

	require.InDelta(t, 2, testutil.ToFloat64(documentCacheTotalCounter)-totalBefore, 0)
	require.InDelta(t, 1, testutil.ToFloat64(documentCacheHitCounter)-hitsBefore, 0)
}

func TestCachedReaderClose(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	inner := mocks.NewMockDocumentReader(mockController)
	inner.EXPECT().Get(gomock.Any(), "1").Return(storage.NotFound(), nil)
	inner.EXPECT().Close().Times(1)

	cached := NewCachedReader(inner)
	_, err := cached.Get(context.Background(), "1")
	require.NoError(t, err)

	cached.Close()
	require.Zero(t, cached.Size())
}
