// Package get contains the commands that fetch documents and print them as JSON.
package get

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docchain/docchain/cmd"
	"github.com/docchain/docchain/internal/config"
	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/retriever"
	"github.com/docchain/docchain/pkg/telemetry"
)

const traceShutdownTimeout = 2 * time.Second

// NewGetCommand returns the command fetching documents by id through the configured chain.
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: "Fetch documents by id",
		Long: `Fetch documents by id through the configured chain of backends and print a JSON object
mapping every requested id to its document, or to null when no backend holds it.`,
		Example: "docchain get 1 2 3 --backends keyed,tabular --tabular-path documents.csv",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runGet,
	}
}

func runGet(command *cobra.Command, ids []string) error {
	cfg, err := cmd.ReadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Verify(); err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Debug("using config", zap.Stringer("config", cfg))

	ctx := command.Context()
	stopTracing, err := startTracing(ctx, cfg.Trace, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	app, err := retriever.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	docs, err := app.GetDocumentsFromIDs(ctx, ids)
	if err != nil {
		return err
	}

	return writeJSON(command.OutOrStdout(), docs)
}

// NewFileCommand returns the command reading a whole flat file.
func NewFileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Read every document of a flat file",
		Long: `Read every row of a flat file and print a JSON object keyed by the file path, whose value
maps every document id to its content. The id and content columns are taken from the
tabular configuration.`,
		Example: "docchain file documents.csv --tabular-id-column id --tabular-content-column text",
		Args:    cobra.ExactArgs(1),
		RunE:    runFile,
	}
}

func runFile(command *cobra.Command, args []string) error {
	cfg, err := cmd.ReadConfig()
	if err != nil {
		return err
	}

	cfg.Tabular.Path = args[0]
	if err := cfg.Tabular.Verify(); err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	stopTracing, err := startTracing(command.Context(), cfg.Trace, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	app := retriever.New(nil,
		retriever.WithLogger(log),
		retriever.WithFileReader(retriever.TabularFileReader(cfg.Tabular, log)),
	)
	defer app.Close()

	docs, err := app.GetDocumentsFromFile(command.Context(), cfg.Tabular.Path)
	if err != nil {
		return err
	}

	return writeJSON(command.OutOrStdout(), docs)
}

// startTracing installs a span exporter when tracing is enabled. The returned func flushes
// the spans recorded so far.
func startTracing(ctx context.Context, cfg config.TraceConfig, log logger.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	tp, err := telemetry.NewTracerProvider(ctx,
		telemetry.WithOTLPEndpoint(cfg.OTLP.Endpoint),
		telemetry.WithServiceName(cfg.ServiceName),
		telemetry.WithSamplingRatio(cfg.SampleRatio),
	)
	if err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), traceShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}

	_, err = fmt.Fprintln(w, string(out))
	return err
}
