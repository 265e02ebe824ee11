package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/storage/sqlcommon"
)

const backend = "mysql"

// DSN formats the connection string for cfg.
func DSN(cfg *sqlcommon.Config) string {
	dsnCfg := mysql.NewConfig()
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = cfg.Host
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.DBName = cfg.Database
	return dsnCfg.FormatDSN()
}

// New creates a reader for the table cfg.Table of the MySQL database cfg.Database at cfg.Host.
// No connection is made until the first lookup.
func New(cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, storage.ConfigurationError("mysql host and database are required")
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	reader, err := NewWithDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return reader, nil
}

// NewWithDB creates a reader over an already opened MySQL handle. The reader owns db.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*sqlcommon.Reader, error) {
	sqlcommon.ConfigureDB(db, cfg)

	dbInfo := sqlcommon.NewDBInfo(db, sq.StatementBuilder, HandleSQLError, backend)
	return sqlcommon.NewReader(dbInfo, cfg)
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return fmt.Errorf("mysql error %d: %w", me.Number, err)
	}

	if errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("invalid connection: %w", err)
	}

	return fmt.Errorf("sql error: %w", err)
}
