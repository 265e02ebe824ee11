package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/sqlcommon"
	"github.com/docchain/docchain/pkg/storage/test"
)

// seedDatabase writes docs into a fresh documents table and returns the database path.
func seedDatabase(t *testing.T, docs map[string]*storage.Document) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "documents.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE documents (document_id TEXT PRIMARY KEY, content TEXT NOT NULL)`)
	require.NoError(t, err)

	for id, doc := range docs {
		content, _ := doc.Get("content")
		_, err := db.Exec(`INSERT INTO documents (document_id, content) VALUES (?, ?)`, id, content)
		require.NoError(t, err)
	}

	return path
}

func TestSQLiteReader(t *testing.T) {
	test.RunAllTests(t, func(t *testing.T, docs map[string]*storage.Document) storage.DocumentReader {
		reader, err := New(sqlcommon.NewConfig(
			sqlcommon.WithDatabase(seedDatabase(t, docs)),
			sqlcommon.WithTable("documents"),
		))
		require.NoError(t, err)
		return reader
	})
}

func TestTableSurvivesInjectionAttempt(t *testing.T) {
	ctx := context.Background()
	path := seedDatabase(t, test.Fixture())

	reader, err := New(sqlcommon.NewConfig(
		sqlcommon.WithDatabase(path),
		sqlcommon.WithTable("documents"),
	))
	require.NoError(t, err)
	defer reader.Close()

	res, err := reader.Get(ctx, "1'; DROP TABLE documents; --")
	require.NoError(t, err)
	require.False(t, res.IsFound())

	res, err = reader.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, res.IsFound())
}

func TestReaderIsReadOnly(t *testing.T) {
	path := seedDatabase(t, test.Fixture())
	uri, err := PrepareDSN(path)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", uri)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`DELETE FROM documents`)
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Run("missing_database", func(t *testing.T) {
		_, err := New(sqlcommon.NewConfig(sqlcommon.WithTable("documents")))
		require.ErrorIs(t, err, storage.ErrConfiguration)
	})

	t.Run("invalid_table", func(t *testing.T) {
		_, err := New(sqlcommon.NewConfig(
			sqlcommon.WithDatabase(filepath.Join(t.TempDir(), "documents.db")),
			sqlcommon.WithTable("documents WHERE 1=1"),
		))
		require.ErrorIs(t, err, storage.ErrConfiguration)
	})
}

func TestMissingTableIsFault(t *testing.T) {
	reader, err := New(sqlcommon.NewConfig(
		sqlcommon.WithDatabase(seedDatabase(t, test.Fixture())),
		sqlcommon.WithTable("archive"),
	))
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Get(context.Background(), "1")
	require.ErrorIs(t, err, storage.ErrConnectionFault)
	require.False(t, errors.Is(err, storage.ErrConfiguration))
}

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{
			name: "plain_path",
			uri:  "/tmp/documents.db",
			want: "/tmp/documents.db?_pragma=busy_timeout%28100%29&_pragma=query_only%281%29",
		},
		{
			name: "keeps_existing_pragmas",
			uri:  "/tmp/documents.db?_pragma=busy_timeout(500)&_pragma=query_only(0)",
			want: "/tmp/documents.db?_pragma=busy_timeout%28500%29&_pragma=query_only%280%29",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := PrepareDSN(test.uri)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestHandleSQLError(t *testing.T) {
	err := HandleSQLError(sql.ErrConnDone)
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.ErrorContains(t, err, "sql error")
}
