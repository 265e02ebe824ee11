// Package config holds the configuration of a document retrieval chain and its defaults.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/docchain/docchain/pkg/storage"
)

// Backend kinds accepted in Config.Backends.
const (
	BackendKeyed      = "keyed"
	BackendMemory     = "memory"
	BackendTabular    = "tabular"
	BackendRelational = "relational"
)

// Relational engines accepted in RelationalConfig.Engine.
const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

const (
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisCollection      = "documents"
	DefaultRedisConnectTimeout  = 10 * time.Second
	DefaultTabularIDColumn      = "document_id"
	DefaultTabularContentColumn = "content"
	DefaultRelationalEngine     = EngineSQLite
	DefaultRelationalIDColumn   = "document_id"
)

var (
	backendKinds = []string{BackendKeyed, BackendMemory, BackendTabular, BackendRelational}
	engines      = []string{EngineMySQL, EnginePostgres, EngineSQLite}
	logLevels    = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
)

// RedisConfig configures the keyed document store.
type RedisConfig struct {
	Addr           string
	DB             int
	Username       string
	Password       string
	Collection     string
	ConnectTimeout time.Duration
}

// MemoryConfig seeds the in-process keyed store, mostly for local experiments.
type MemoryConfig struct {
	Documents map[string]map[string]interface{}
}

// TabularConfig configures the flat file reader.
type TabularConfig struct {
	Path          string
	IDColumn      string
	ContentColumn string
}

// RelationalConfig configures the relational reader.
type RelationalConfig struct {
	// Engine is one of mysql, postgres or sqlite.
	Engine   string
	Host     string
	Username string
	Password string

	// Database is the database name, or the database file for sqlite.
	Database string
	Table    string
	IDColumn string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type MetricConfig struct {
	Enabled bool
}

type OTLPTraceConfig struct {
	Endpoint string
}

// TraceConfig defines configuration for exporting the spans recorded around lookups.
type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

// Config defines the configuration of a retrieval chain.
type Config struct {
	// Backends lists the reader kinds in the order they are consulted.
	Backends []string

	// UseCache wraps the head of the chain in a memoizing cache.
	UseCache bool

	// FallbackOnFault lets a reader that fails with a connection fault hand the lookup
	// to its successor. By default faults propagate to the caller.
	FallbackOnFault bool

	Redis      RedisConfig
	Memory     MemoryConfig
	Tabular    TabularConfig
	Relational RelationalConfig
	Log        LogConfig
	Metrics    MetricConfig
	Trace      TraceConfig
}

// FallbackPolicy returns the policy selected by FallbackOnFault.
func (cfg *Config) FallbackPolicy() storage.FallbackPolicy {
	if cfg.FallbackOnFault {
		return storage.FallbackOnFault
	}
	return storage.FallbackOnNotFound
}

// Verify checks that the configuration describes a chain that can be built.
// Every failure matches storage.ErrConfiguration.
func (cfg *Config) Verify() error {
	if err := cfg.verifyLog(); err != nil {
		return err
	}

	if cfg.Trace.Enabled {
		if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
			return storage.ConfigurationError("config 'trace.sampleRatio' (%g) must be between 0 and 1", cfg.Trace.SampleRatio)
		}
		if cfg.Trace.OTLP.Endpoint == "" {
			return storage.ConfigurationError("config 'trace.otlp.endpoint' must be set when tracing is enabled")
		}
	}

	if len(cfg.Backends) == 0 {
		return storage.ConfigurationError("config 'backends' must list at least one of %v", backendKinds)
	}

	seen := make(map[string]struct{}, len(cfg.Backends))
	for _, kind := range cfg.Backends {
		if !slices.Contains(backendKinds, kind) {
			return storage.ConfigurationError("config 'backends' contains unknown kind %q, must be one of %v", kind, backendKinds)
		}
		if _, ok := seen[kind]; ok {
			return storage.ConfigurationError("config 'backends' lists %q more than once", kind)
		}
		seen[kind] = struct{}{}

		var err error
		switch kind {
		case BackendKeyed:
			err = cfg.Redis.verify()
		case BackendTabular:
			err = cfg.Tabular.Verify()
		case BackendRelational:
			err = cfg.Relational.verify()
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (cfg *Config) verifyLog() error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return storage.ConfigurationError("config 'log.format' must be one of ['text', 'json']")
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		return storage.ConfigurationError("config 'log.level' must be one of %v", logLevels)
	}

	return nil
}

func (c RedisConfig) verify() error {
	if c.Addr == "" {
		return storage.ConfigurationError("config 'redis.addr' must be set")
	}
	if c.Collection == "" {
		return storage.ConfigurationError("config 'redis.collection' must be set")
	}
	if c.DB < 0 {
		return storage.ConfigurationError("config 'redis.db' (%d) cannot be negative", c.DB)
	}
	return nil
}

// Verify checks the flat file settings. It is also used on its own by whole-file reads.
func (c TabularConfig) Verify() error {
	if c.Path == "" {
		return storage.ConfigurationError("config 'tabular.path' must be set")
	}
	if c.IDColumn == "" || c.ContentColumn == "" {
		return storage.ConfigurationError("config 'tabular.idColumn' and 'tabular.contentColumn' must be set")
	}
	if c.IDColumn == c.ContentColumn {
		return storage.ConfigurationError("config 'tabular.idColumn' and 'tabular.contentColumn' must differ")
	}
	return nil
}

func (c RelationalConfig) verify() error {
	if !slices.Contains(engines, c.Engine) {
		return storage.ConfigurationError("config 'relational.engine' must be one of %v", engines)
	}
	if c.Database == "" {
		return storage.ConfigurationError("config 'relational.database' must be set")
	}
	if c.Engine != EngineSQLite && c.Host == "" {
		return storage.ConfigurationError("config 'relational.host' must be set for %s", c.Engine)
	}
	if c.Table == "" {
		return storage.ConfigurationError("config 'relational.table' must be set")
	}
	return nil
}

// DefaultConfig returns the configuration of a single keyed store on a local redis.
func DefaultConfig() *Config {
	return &Config{
		Backends: []string{BackendKeyed},
		Redis: RedisConfig{
			Addr:           DefaultRedisAddr,
			Collection:     DefaultRedisCollection,
			ConnectTimeout: DefaultRedisConnectTimeout,
		},
		Tabular: TabularConfig{
			IDColumn:      DefaultTabularIDColumn,
			ContentColumn: DefaultTabularContentColumn,
		},
		Relational: RelationalConfig{
			Engine:   DefaultRelationalEngine,
			IDColumn: DefaultRelationalIDColumn,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricConfig{
			Enabled: false,
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "docchain",
		},
	}
}

// String renders the configuration with secrets redacted.
func (cfg *Config) String() string {
	redacted := *cfg
	if redacted.Redis.Password != "" {
		redacted.Redis.Password = "REDACTED"
	}
	if redacted.Relational.Password != "" {
		redacted.Relational.Password = "REDACTED"
	}
	return fmt.Sprintf("%+v", redacted)
}
