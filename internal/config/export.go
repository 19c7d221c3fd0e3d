package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ExportConfig holds configuration for the export command.
type ExportConfig struct {
	RPCURL         string
	Coordinator    string
	WindowSize     uint64
	Genesis        uint64
	Pages          uint32
	Out            string
	Errors         string
	PGDSN          string
	Resume         bool
	MaxRetries     uint64
	RetryBackoff   time.Duration
	FetchTimeout   time.Duration
	DeadlineOffset uint64
	LogLevel       string
}

// LoadExport merges config file, environment variables, and flags into
// ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window-size":     uint64(5000),
		"out":             "./data/requests.jsonl",
		"errors":          "./data/decode_errors.jsonl",
		"resume":          true,
		"max-retries":     uint64(5),
		"retry-backoff":   500 * time.Millisecond,
		"fetch-timeout":   time.Minute,
		"deadline-offset": uint64(30),
		"log-level":       "info",
	})
	if err != nil {
		return ExportConfig{}, err
	}

	cfg := ExportConfig{
		RPCURL:         v.GetString("rpc"),
		Coordinator:    v.GetString("coordinator"),
		WindowSize:     v.GetUint64("window-size"),
		Genesis:        v.GetUint64("genesis"),
		Pages:          v.GetUint32("pages"),
		Out:            v.GetString("out"),
		Errors:         v.GetString("errors"),
		PGDSN:          v.GetString("pg-dsn"),
		Resume:         v.GetBool("resume"),
		MaxRetries:     v.GetUint64("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),
		DeadlineOffset: v.GetUint64("deadline-offset"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
