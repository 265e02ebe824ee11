package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/sqlcommon"
)

const backend = "sqlite"

// PrepareDSN returns a DSN for the database file at uri, adding a busy timeout and
// read-only pragmas unless they were specified already.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundBusyTimeout := false
	foundQueryOnly := false
	for _, val := range query["_pragma"] {
		if strings.HasPrefix(val, "busy_timeout") {
			foundBusyTimeout = true
		} else if strings.HasPrefix(val, "query_only") {
			foundQueryOnly = true
		}
	}

	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}
	if !foundQueryOnly {
		query.Add("_pragma", "query_only(1)")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New opens the sqlite database file named by cfg.Database. cfg.Host is ignored.
func New(cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	if cfg.Database == "" {
		return nil, storage.ConfigurationError("sqlite database path is required")
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	uri, err := PrepareDSN(cfg.Database)
	if err != nil {
		return nil, storage.ConfigurationError("%s", err)
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	reader, err := NewWithDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return reader, nil
}

// NewWithDB creates a reader over an already opened sqlite handle. The reader owns db.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	sqlcommon.ConfigureDB(db, cfg)

	dbInfo := sqlcommon.NewDBInfo(db, sq.StatementBuilder, HandleSQLError, backend)
	return sqlcommon.NewReader(dbInfo, cfg)
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	if isBusyError(err) {
		return fmt.Errorf("database is locked: %w", err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return fmt.Errorf("sqlite error %d: %w", sqliteErr.Code(), err)
	}

	return fmt.Errorf("sql error: %w", err)
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
}
