package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.

	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/sqlcommon"
)

const backend = "postgres"

// DSN formats the connection URL for cfg.
func DSN(cfg *sqlcommon.Config) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host,
		Path:   "/" + cfg.Database,
	}

	switch {
	case cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}

	return u.String()
}

// New creates a reader for the table cfg.Table of the PostgreSQL database cfg.Database at cfg.Host.
// No connection is made until the first lookup.
func New(cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, storage.ConfigurationError("postgres host and database are required")
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	reader, err := NewWithDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return reader, nil
}

// NewWithDB creates a reader over an already opened PostgreSQL handle. The reader owns db.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	sqlcommon.ConfigureDB(db, cfg)

	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, backend)
	return sqlcommon.NewReader(dbInfo, cfg)
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres error %s: %w", pgErr.Code, err)
	}

	return fmt.Errorf("sql error: %w", err)
}
