package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QueryConfig holds configuration for the query command.
type QueryConfig struct {
	RPCURL         string
	Coordinator    string
	WindowSize     uint64
	Genesis        uint64
	WindowPage     uint32
	Page           uint32
	PageSize       uint32
	Requester      string
	Statuses       []string
	FromTime       string
	ToTime         string
	SortBy         string
	SortDir        string
	FetchTimeout   time.Duration
	DeadlineOffset uint64
	LogLevel       string
}

// LoadQuery merges config file, environment variables, and flags into
// QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window-size":     uint64(5000),
		"page":            uint32(1),
		"page-size":       uint32(10),
		"sort-by":         "timestamp",
		"sort-dir":        "desc",
		"fetch-timeout":   30 * time.Second,
		"deadline-offset": uint64(30),
		"log-level":       "info",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		RPCURL:         v.GetString("rpc"),
		Coordinator:    v.GetString("coordinator"),
		WindowSize:     v.GetUint64("window-size"),
		Genesis:        v.GetUint64("genesis"),
		WindowPage:     v.GetUint32("window-page"),
		Page:           v.GetUint32("page"),
		PageSize:       v.GetUint32("page-size"),
		Requester:      v.GetString("requester"),
		Statuses:       getStringSlice(v, "status"),
		FromTime:       v.GetString("from-time"),
		ToTime:         v.GetString("to-time"),
		SortBy:         v.GetString("sort-by"),
		SortDir:        v.GetString("sort-dir"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),
		DeadlineOffset: v.GetUint64("deadline-offset"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("RANDSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
