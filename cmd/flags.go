package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docchain/docchain/cmd/util"
	"github.com/docchain/docchain/internal/config"
)

// bindChainFlags registers the chain configuration as persistent flags of command, so that
// every subcommand shares a single viper binding per key.
func bindChainFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.PersistentFlags()

	flags.StringSlice("backends", defaultConfig.Backends, fmt.Sprintf("the backends to consult, in order. Allowed values: %s, %s, %s, %s", config.BackendKeyed, config.BackendMemory, config.BackendTabular, config.BackendRelational))
	util.MustBindPFlag("backends", flags.Lookup("backends"))
	util.MustBindEnv("backends", "DOCCHAIN_BACKENDS")

	flags.Bool("use-cache", defaultConfig.UseCache, "memoize every lookup, including misses, for the lifetime of the command")
	util.MustBindPFlag("useCache", flags.Lookup("use-cache"))
	util.MustBindEnv("useCache", "DOCCHAIN_USE_CACHE")

	flags.Bool("fallback-on-fault", defaultConfig.FallbackOnFault, "consult the next backend when a backend cannot be reached instead of failing")
	util.MustBindPFlag("fallbackOnFault", flags.Lookup("fallback-on-fault"))
	util.MustBindEnv("fallbackOnFault", "DOCCHAIN_FALLBACK_ON_FAULT")

	flags.String("redis-addr", defaultConfig.Redis.Addr, "a comma-separated list of host:port addresses of the keyed document store")
	util.MustBindPFlag("redis.addr", flags.Lookup("redis-addr"))
	util.MustBindEnv("redis.addr", "DOCCHAIN_REDIS_ADDR")

	flags.Int("redis-db", defaultConfig.Redis.DB, "the logical database of the keyed document store")
	util.MustBindPFlag("redis.db", flags.Lookup("redis-db"))
	util.MustBindEnv("redis.db", "DOCCHAIN_REDIS_DB")

	flags.String("redis-username", defaultConfig.Redis.Username, "the username of the keyed document store")
	util.MustBindPFlag("redis.username", flags.Lookup("redis-username"))
	util.MustBindEnv("redis.username", "DOCCHAIN_REDIS_USERNAME")

	flags.String("redis-password", defaultConfig.Redis.Password, "the password of the keyed document store")
	util.MustBindPFlag("redis.password", flags.Lookup("redis-password"))
	util.MustBindEnv("redis.password", "DOCCHAIN_REDIS_PASSWORD")

	flags.String("redis-collection", defaultConfig.Redis.Collection, "the collection (key prefix) documents are read from")
	util.MustBindPFlag("redis.collection", flags.Lookup("redis-collection"))
	util.MustBindEnv("redis.collection", "DOCCHAIN_REDIS_COLLECTION")

	flags.Duration("redis-connect-timeout", defaultConfig.Redis.ConnectTimeout, "how long to keep retrying the first connection to the keyed document store")
	util.MustBindPFlag("redis.connectTimeout", flags.Lookup("redis-connect-timeout"))
	util.MustBindEnv("redis.connectTimeout", "DOCCHAIN_REDIS_CONNECT_TIMEOUT")

	flags.String("tabular-path", defaultConfig.Tabular.Path, "the path of the CSV file")
	util.MustBindPFlag("tabular.path", flags.Lookup("tabular-path"))
	util.MustBindEnv("tabular.path", "DOCCHAIN_TABULAR_PATH")

	flags.String("tabular-id-column", defaultConfig.Tabular.IDColumn, "the CSV column holding document ids")
	util.MustBindPFlag("tabular.idColumn", flags.Lookup("tabular-id-column"))
	util.MustBindEnv("tabular.idColumn", "DOCCHAIN_TABULAR_ID_COLUMN")

	flags.String("tabular-content-column", defaultConfig.Tabular.ContentColumn, "the CSV column holding document content")
	util.MustBindPFlag("tabular.contentColumn", flags.Lookup("tabular-content-column"))
	util.MustBindEnv("tabular.contentColumn", "DOCCHAIN_TABULAR_CONTENT_COLUMN")

	flags.String("relational-engine", defaultConfig.Relational.Engine, fmt.Sprintf("the relational engine. Allowed values: %s, %s, %s", config.EngineMySQL, config.EnginePostgres, config.EngineSQLite))
	util.MustBindPFlag("relational.engine", flags.Lookup("relational-engine"))
	util.MustBindEnv("relational.engine", "DOCCHAIN_RELATIONAL_ENGINE")

	flags.String("relational-host", defaultConfig.Relational.Host, "the host:port of the relational database")
	util.MustBindPFlag("relational.host", flags.Lookup("relational-host"))
	util.MustBindEnv("relational.host", "DOCCHAIN_RELATIONAL_HOST")

	flags.String("relational-username", defaultConfig.Relational.Username, "the username of the relational database")
	util.MustBindPFlag("relational.username", flags.Lookup("relational-username"))
	util.MustBindEnv("relational.username", "DOCCHAIN_RELATIONAL_USERNAME")

	flags.String("relational-password", defaultConfig.Relational.Password, "the password of the relational database")
	util.MustBindPFlag("relational.password", flags.Lookup("relational-password"))
	util.MustBindEnv("relational.password", "DOCCHAIN_RELATIONAL_PASSWORD")

	flags.String("relational-database", defaultConfig.Relational.Database, "the database name, or the database file for sqlite")
	util.MustBindPFlag("relational.database", flags.Lookup("relational-database"))
	util.MustBindEnv("relational.database", "DOCCHAIN_RELATIONAL_DATABASE")

	flags.String("relational-table", defaultConfig.Relational.Table, "the table documents are read from")
	util.MustBindPFlag("relational.table", flags.Lookup("relational-table"))
	util.MustBindEnv("relational.table", "DOCCHAIN_RELATIONAL_TABLE")

	flags.String("relational-id-column", defaultConfig.Relational.IDColumn, "the column holding document ids")
	util.MustBindPFlag("relational.idColumn", flags.Lookup("relational-id-column"))
	util.MustBindEnv("relational.idColumn", "DOCCHAIN_RELATIONAL_ID_COLUMN")

	flags.Int("relational-max-open-conns", defaultConfig.Relational.MaxOpenConns, "the maximum number of open connections to the relational database")
	util.MustBindPFlag("relational.maxOpenConns", flags.Lookup("relational-max-open-conns"))
	util.MustBindEnv("relational.maxOpenConns", "DOCCHAIN_RELATIONAL_MAX_OPEN_CONNS")

	flags.Int("relational-max-idle-conns", defaultConfig.Relational.MaxIdleConns, "the maximum number of connections kept idle between lookups (0 closes every connection after use)")
	util.MustBindPFlag("relational.maxIdleConns", flags.Lookup("relational-max-idle-conns"))
	util.MustBindEnv("relational.maxIdleConns", "DOCCHAIN_RELATIONAL_MAX_IDLE_CONNS")

	flags.Duration("relational-conn-max-idle-time", defaultConfig.Relational.ConnMaxIdleTime, "the maximum amount of time a connection may be idle")
	util.MustBindPFlag("relational.connMaxIdleTime", flags.Lookup("relational-conn-max-idle-time"))
	util.MustBindEnv("relational.connMaxIdleTime", "DOCCHAIN_RELATIONAL_CONN_MAX_IDLE_TIME")

	flags.Duration("relational-conn-max-lifetime", defaultConfig.Relational.ConnMaxLifetime, "the maximum amount of time a connection may be reused")
	util.MustBindPFlag("relational.connMaxLifetime", flags.Lookup("relational-conn-max-lifetime"))
	util.MustBindEnv("relational.connMaxLifetime", "DOCCHAIN_RELATIONAL_CONN_MAX_LIFETIME")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in. Allowed values: text, json")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "DOCCHAIN_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use. Allowed values: none, debug, info, warn, error, panic, fatal")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "DOCCHAIN_LOG_LEVEL")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "count lookups and export database pool statistics with prometheus")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "DOCCHAIN_METRICS_ENABLED")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "export the spans recorded around lookups")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "DOCCHAIN_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp.endpoint", "DOCCHAIN_TRACE_OTLP_ENDPOINT")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "DOCCHAIN_TRACE_SAMPLE_RATIO")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces")
	util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
	util.MustBindEnv("trace.serviceName", "DOCCHAIN_TRACE_SERVICE_NAME")
}

// ReadConfig returns the chain configuration assembled from defaults, config.yaml,
// environment variables and flags.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
