package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("redis-addr", "localhost:6379", "")
	MustBindPFlag("redis.addr", flags.Lookup("redis-addr"))

	require.Equal(t, "localhost:6379", viper.GetString("redis.addr"))

	require.NoError(t, flags.Set("redis-addr", "cache:6379"))
	require.Equal(t, "cache:6379", viper.GetString("redis.addr"))

	require.Panics(t, func() {
		MustBindPFlag("missing", nil)
	})
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("DOCCHAIN_TABULAR_PATH", "/data/documents.csv")

	MustBindEnv("tabular.path", "DOCCHAIN_TABULAR_PATH")
	require.Equal(t, "/data/documents.csv", viper.GetString("tabular.path"))

	require.Panics(t, func() {
		MustBindEnv()
	})
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "useCache: true\n")

	content, err := os.ReadFile(filepath.Join(os.Getenv("HOME"), ".docchain", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "useCache: true\n", string(content))
}
