package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	RPCURL         string
	Coordinator    string
	WindowSize     uint64
	Genesis        uint64
	PollInterval   time.Duration
	CacheTTL       time.Duration
	SweepInterval  time.Duration
	StatusInterval time.Duration
	FetchTimeout   time.Duration
	DeadlineOffset uint64
	LogLevel       string
}

// LoadWatch merges config file, environment variables, and flags into
// WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window-size":     uint64(5000),
		"poll-interval":   12 * time.Second,
		"cache-ttl":       30 * time.Second,
		"sweep-interval":  time.Minute,
		"status-interval": 30 * time.Second,
		"fetch-timeout":   30 * time.Second,
		"deadline-offset": uint64(30),
		"log-level":       "info",
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		RPCURL:         v.GetString("rpc"),
		Coordinator:    v.GetString("coordinator"),
		WindowSize:     v.GetUint64("window-size"),
		Genesis:        v.GetUint64("genesis"),
		PollInterval:   v.GetDuration("poll-interval"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		SweepInterval:  v.GetDuration("sweep-interval"),
		StatusInterval: v.GetDuration("status-interval"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),
		DeadlineOffset: v.GetUint64("deadline-offset"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
