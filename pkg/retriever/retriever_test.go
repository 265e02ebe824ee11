package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/docchain/docchain/internal/mocks"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/memory"
	"github.com/docchain/docchain/pkg/storage/redis"
	"github.com/docchain/docchain/pkg/storage/tabular"
)

func fieldDocument(value string) *storage.Document {
	doc := storage.NewDocument()
	doc.Set("field", value)
	return doc
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documents.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetDocumentsFromIDs(t *testing.T) {
	ctx := context.Background()
	app := New(memory.New(memory.WithDocuments(map[string]*storage.Document{
		"1": fieldDocument("doc_1"),
		"2": fieldDocument("doc_2"),
	})))
	defer app.Close()

	t.Run("all_found", func(t *testing.T) {
		got, err := app.GetDocumentsFromIDs(ctx, []string{"1", "2"})
		require.NoError(t, err)

		out, err := json.Marshal(got)
		require.NoError(t, err)
		require.JSONEq(t, `{"1":{"field":"doc_1"},"2":{"field":"doc_2"}}`, string(out))
	})

	t.Run("unknown_ids_map_to_not_found", func(t *testing.T) {
		got, err := app.GetDocumentsFromIDs(ctx, []string{"1", "42"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.True(t, got["1"].IsFound())
		require.False(t, got["42"].IsFound())
	})

	t.Run("duplicate_ids_collapse", func(t *testing.T) {
		got, err := app.GetDocumentsFromIDs(ctx, []string{"2", "2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("empty_batch", func(t *testing.T) {
		got, err := app.GetDocumentsFromIDs(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestGetDocumentsFromIDsWithoutReader(t *testing.T) {
	app := New(nil)
	defer app.Close()

	got, err := app.GetDocumentsFromIDs(context.Background(), []string{"1"})
	require.Nil(t, got)
	require.ErrorIs(t, err, storage.ErrConfiguration)
}

func TestGetDocumentsFromIDsAbortsOnError(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	fault := storage.ConnectionFaultError("test", errors.New("connection refused"))
	reader := mocks.NewMockDocumentReader(mockController)
	gomock.InOrder(
		reader.EXPECT().Get(gomock.Any(), "1").Return(storage.Found(fieldDocument("doc_1")), nil),
		reader.EXPECT().Get(gomock.Any(), "2").Return(storage.NotFound(), fault),
	)
	reader.EXPECT().Get(gomock.Any(), "3").Times(0)

	app := New(reader)
	got, err := app.GetDocumentsFromIDs(ctx, []string{"1", "2", "3"})
	require.Nil(t, got)
	require.ErrorIs(t, err, storage.ErrConnectionFault)
	require.ErrorContains(t, err, `get document "2"`)
}

func TestGetDocumentsFromFile(t *testing.T) {
	ctx := context.Background()
	path := writeCSV(t, "document_id,content\n1,a\n2,b\n")

	app := New(memory.New())
	defer app.Close()

	got, err := app.GetDocumentsFromFile(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	out, err := json.Marshal(got[path])
	require.NoError(t, err)
	require.JSONEq(t, `{"1":"a","2":"b"}`, string(out))

	_, err = app.GetDocumentsFromFile(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, storage.ErrConnectionFault)

	_, err = app.GetDocumentsFromFile(ctx, "")
	require.ErrorIs(t, err, storage.ErrConfiguration)
}

func TestWithFileReader(t *testing.T) {
	path := writeCSV(t, "key;body\nx;hello\n")

	app := New(memory.New(), WithFileReader(func(name string) (FileReader, error) {
		return tabular.New(name,
			tabular.WithIDColumn("key"),
			tabular.WithContentColumn("body"),
			tabular.WithComma(';'),
		)
	}))

	got, err := app.GetDocumentsFromFile(context.Background(), path)
	require.NoError(t, err)
	value, ok := got[path].Get("x")
	require.True(t, ok)
	require.Equal(t, "hello", value)
}

func TestNewKeyedStoreApp(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	client.EXPECT().Ping(gomock.Any()).Return(goredis.NewStatusResult("PONG", nil))
	client.EXPECT().Get(gomock.Any(), "docs:1").Return(goredis.NewStringResult(`{"field":"doc_1"}`, nil)).Times(1)
	client.EXPECT().Get(gomock.Any(), "docs:9").Return(goredis.NewStringResult("", goredis.Nil)).Times(1)
	client.EXPECT().Close().Return(nil)

	app, err := NewKeyedStoreApp(ctx, true, []redis.Option{
		redis.WithClient(client),
		redis.WithCollection("docs"),
	})
	require.NoError(t, err)
	defer app.Close()

	for range 2 {
		got, err := app.GetDocumentsFromIDs(ctx, []string{"1", "9"})
		require.NoError(t, err)
		require.True(t, got["1"].IsFound())
		require.False(t, got["9"].IsFound())
	}
}

func TestNewKeyedStoreAppConnectFailure(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	client.EXPECT().Ping(gomock.Any()).Return(goredis.NewStatusResult("", errors.New("refused"))).MinTimes(1)

	_, err := NewKeyedStoreApp(context.Background(), false, []redis.Option{
		redis.WithClient(client),
		redis.WithCollection("docs"),
		redis.WithConnectTimeout(time.Millisecond),
	})
	require.ErrorIs(t, err, storage.ErrConnectionFault)

	_, err = NewKeyedStoreApp(context.Background(), false, nil)
	require.ErrorIs(t, err, storage.ErrConfiguration)
}

func TestNewTabularApp(t *testing.T) {
	path := writeCSV(t, "document_id,content\n1,a\n")

	app, err := NewTabularApp(false, path, nil)
	require.NoError(t, err)
	defer app.Close()

	got, err := app.GetDocumentsFromIDs(context.Background(), []string{"1"})
	require.NoError(t, err)
	doc, ok := got["1"].Document()
	require.True(t, ok)
	content, _ := doc.Get("content")
	require.Equal(t, "a", content)

	_, err = NewTabularApp(false, "", nil)
	require.ErrorIs(t, err, storage.ErrConfiguration)
}

func TestNewChainApp(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	file, err := tabular.New(writeCSV(t, "document_id,content\n2,from file\n"))
	require.NoError(t, err)

	client := mocks.NewMockClient(mockController)
	client.EXPECT().Ping(gomock.Any()).Return(goredis.NewStatusResult("PONG", nil))
	client.EXPECT().Get(gomock.Any(), "docs:1").Return(goredis.NewStringResult(`{"field":"doc_1"}`, nil))
	client.EXPECT().Get(gomock.Any(), "docs:2").Return(goredis.NewStringResult("", goredis.Nil))
	client.EXPECT().Get(gomock.Any(), "docs:3").Return(goredis.NewStringResult("", goredis.Nil))
	client.EXPECT().Close().Return(nil)

	app, err := NewChainApp(ctx, false, []redis.Option{
		redis.WithClient(client),
		redis.WithCollection("docs"),
	}, file)
	require.NoError(t, err)
	defer app.Close()

	got, err := app.GetDocumentsFromIDs(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"1":{"field":"doc_1"},"2":{"content":"from file"},"3":null}`, string(out))

	_, err = NewChainApp(ctx, false, nil, nil)
	require.ErrorIs(t, err, storage.ErrConfiguration)
}
