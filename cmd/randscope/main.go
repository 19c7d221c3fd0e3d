package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "randscope",
		Short:        "Randomness coordinator request explorer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query one page of the request view for a history window",
		RunE:  runQuery,
	}

	queryCmd.Flags().String("rpc", "", "chain RPC URL")
	queryCmd.Flags().String("coordinator", "", "coordinator contract address")
	queryCmd.Flags().Uint64("window-size", 5000, "blocks per history window")
	queryCmd.Flags().Uint64("genesis", 0, "coordinator deployment block")
	queryCmd.Flags().Uint32("window-page", 0, "history window page (0 is newest)")
	queryCmd.Flags().Uint32("page", 1, "result page (1-based)")
	queryCmd.Flags().Uint32("page-size", 10, "results per page")
	queryCmd.Flags().String("requester", "", "filter by requester address")
	queryCmd.Flags().StringSlice("status", nil, "filter by status (pending, fulfilled, failed)")
	queryCmd.Flags().String("from-time", "", "filter from timestamp (unix seconds or RFC3339)")
	queryCmd.Flags().String("to-time", "", "filter to timestamp (unix seconds or RFC3339)")
	queryCmd.Flags().String("sort-by", "timestamp", "sort key (timestamp, fee, deadline)")
	queryCmd.Flags().String("sort-dir", "desc", "sort direction (asc, desc)")
	queryCmd.Flags().Duration("fetch-timeout", 30*time.Second, "window fetch timeout")
	queryCmd.Flags().Uint64("deadline-offset", 30, "advisory deadline offset in seconds")
	queryCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(queryCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export aggregated requests to JSONL and Postgres",
		RunE:  runExport,
	}

	exportCmd.Flags().String("rpc", "", "chain RPC URL")
	exportCmd.Flags().String("coordinator", "", "coordinator contract address")
	exportCmd.Flags().Uint64("window-size", 5000, "blocks per history window")
	exportCmd.Flags().Uint64("genesis", 0, "coordinator deployment block")
	exportCmd.Flags().Uint32("pages", 0, "newest window pages to export, 0 means back to genesis")
	exportCmd.Flags().String("out", "./data/requests.jsonl", "output JSONL path")
	exportCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	exportCmd.Flags().Bool("resume", true, "resume from the last exported block in Postgres")
	exportCmd.Flags().Uint64("max-retries", 5, "maximum retry attempts per RPC call")
	exportCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	exportCmd.Flags().Duration("fetch-timeout", time.Minute, "window fetch timeout")
	exportCmd.Flags().Uint64("deadline-offset", 30, "advisory deadline offset in seconds")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow new requests at the tip and keep the view cache fresh",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "chain RPC URL")
	watchCmd.Flags().String("coordinator", "", "coordinator contract address")
	watchCmd.Flags().Uint64("window-size", 5000, "blocks per history window")
	watchCmd.Flags().Uint64("genesis", 0, "coordinator deployment block")
	watchCmd.Flags().Duration("poll-interval", 12*time.Second, "tip polling interval without subscription support")
	watchCmd.Flags().Duration("cache-ttl", 30*time.Second, "view cache TTL")
	watchCmd.Flags().Duration("sweep-interval", time.Minute, "cache sweep interval")
	watchCmd.Flags().Duration("status-interval", 30*time.Second, "status report interval")
	watchCmd.Flags().Duration("fetch-timeout", 30*time.Second, "window fetch timeout")
	watchCmd.Flags().Uint64("deadline-offset", 30, "advisory deadline offset in seconds")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
