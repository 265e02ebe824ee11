package sqlcommon

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/docchain/docchain/internal/build"
	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/telemetry"
)

var tracer = otel.Tracer("docchain/pkg/storage/sqlcommon")

const DefaultIDColumn = "document_id"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config defines the configuration parameters
// for reading documents out of a single sql table.
type Config struct {
	Host     string
	Username string
	Password string
	Database string
	Table    string
	IDColumn string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithHost returns a DatastoreOption that sets the database host (host:port) in the Config.
func WithHost(host string) DatastoreOption {
	return func(config *Config) {
		config.Host = host
	}
}

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithDatabase returns a DatastoreOption that sets the database name in the Config.
// For sqlite this is the path of the database file.
func WithDatabase(database string) DatastoreOption {
	return func(config *Config) {
		config.Database = database
	}
}

// WithTable returns a DatastoreOption that sets the table documents are read from.
func WithTable(table string) DatastoreOption {
	return func(config *Config) {
		config.Table = table
	}
}

// WithIDColumn returns a DatastoreOption that sets the column matched against document ids.
func WithIDColumn(column string) DatastoreOption {
	return func(config *Config) {
		config.IDColumn = column
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config. The default of zero
// closes every connection once a lookup releases it.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.IDColumn == "" {
		cfg.IDColumn = DefaultIDColumn
	}

	return cfg
}

// Verify checks that the table and id column can be safely placed in a query.
// Document ids are always bound as parameters; table and column names cannot be.
func (c *Config) Verify() error {
	if c.Table == "" {
		return storage.ConfigurationError("relational table is required")
	}
	if !identifierPattern.MatchString(c.Table) {
		return storage.ConfigurationError("relational table %q is not a valid identifier", c.Table)
	}
	if !identifierPattern.MatchString(c.IDColumn) || strings.Contains(c.IDColumn, ".") {
		return storage.ConfigurationError("relational id column %q is not a valid identifier", c.IDColumn)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return storage.ConfigurationError("relational connection limits must not be negative")
	}
	return nil
}

// ConfigureDB applies the pool settings of cfg to db. The idle limit is always applied so that
// a zero value gives every lookup its own connection.
func ConfigureDB(db *sql.DB, cfg *Config) {
	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

type errorHandlerFn func(error) error

// DBInfo bundles what a Reader needs from a specific engine.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
	backend        string
}

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, backend string) *DBInfo {
	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
		backend:        backend,
	}
}

// Reader is a [storage.DocumentReader] that reads one row per lookup out of a sql table.
type Reader struct {
	dbInfo           *DBInfo
	table            string
	idColumn         string
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

var _ storage.DocumentReader = (*Reader)(nil)

// NewReader creates a Reader over dbInfo. The table and id column are checked with [Config.Verify].
// With cfg.ExportMetrics the pool statistics of the handle are registered with prometheus.
func NewReader(dbInfo *DBInfo, cfg *Config) (*Reader, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(dbInfo.db, build.ProjectName+"_"+dbInfo.backend)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	return &Reader{
		dbInfo:           dbInfo,
		table:            cfg.Table,
		idColumn:         cfg.IDColumn,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Backend returns the engine name, e.g. "postgres".
func (r *Reader) Backend() string {
	return r.dbInfo.backend
}

// Get see [storage.DocumentReader].Get.
func (r *Reader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	ctx, span := tracer.Start(ctx, r.dbInfo.backend+".Get", trace.WithAttributes(
		attribute.String("table", r.table),
	))
	defer span.End()

	res, err := r.get(ctx, documentID)
	if err != nil {
		telemetry.TraceError(span, err)
	}
	return res, err
}

func (r *Reader) get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	query, args, err := r.dbInfo.stbl.
		Select("*").
		From(r.table).
		Where(sq.Eq{r.idColumn: documentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return storage.NotFound(), storage.ConfigurationError("build query: %s", err)
	}

	conn, err := r.dbInfo.db.Conn(ctx)
	if err != nil {
		return storage.NotFound(), r.fault(err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			r.logger.WarnWithContext(ctx, "failed to release connection", zap.String("backend", r.dbInfo.backend), zap.Error(err))
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.NotFound(), r.fault(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return storage.NotFound(), r.fault(err)
		}
		return storage.NotFound(), nil
	}

	doc, err := r.scanDocument(rows)
	if err != nil {
		return storage.NotFound(), r.fault(err)
	}

	return storage.Found(doc), nil
}

// scanDocument maps the current row into a Document keeping the column order.
// The id column itself is left out.
func (r *Reader) scanDocument(rows *sql.Rows) (*storage.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	doc := storage.NewDocument()
	for i, column := range columns {
		if column == r.idColumn {
			continue
		}
		switch v := values[i].(type) {
		case []byte:
			doc.Set(column, string(v))
		default:
			doc.Set(column, v)
		}
	}

	return doc, nil
}

func (r *Reader) fault(err error) error {
	return storage.ConnectionFaultError(r.dbInfo.backend, r.dbInfo.HandleSQLError(err))
}

// Close closes the underlying database handle and unregisters its metrics.
func (r *Reader) Close() {
	if r.dbStatsCollector != nil {
		prometheus.Unregister(r.dbStatsCollector)
	}
	if err := r.dbInfo.db.Close(); err != nil {
		r.logger.Warn("failed to close database", zap.String("backend", r.dbInfo.backend), zap.Error(err))
	}
}
