// Package config loads shard and router configuration once at process
// startup via viper, from environment variables and an optional config
// file. Ports, WAL size, ring buffer size and publish topic have
// defaults; shard id, symbols and WAL path have none, and a missing one
// (or a ring buffer size that is not a power of two) is fatal at startup,
// so a misconfigured shard never starts serving with the wrong symbol
// ownership.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ShardConfig is a single shard's startup configuration.
type ShardConfig struct {
	ShardID       string   `mapstructure:"shard_id"`
	Symbols       []string `mapstructure:"symbols"`
	SubmitPort    int      `mapstructure:"submit_port"`
	MetricsPort   int      `mapstructure:"metrics_port"`
	BrokerAddress string   `mapstructure:"broker_address"`
	PublishTopic  string   `mapstructure:"publish_topic"`
	WALPath       string   `mapstructure:"wal_path"`
	WALSizeMiB    int64    `mapstructure:"wal_size_mib"`
	RingBufferSize uint64  `mapstructure:"ring_buffer_size"`
}

// LoadShardConfig reads shard configuration from environment variables
// prefixed ME_ and, if configPath is non-empty, from a config file at
// that path. Explicit fields always win over viper defaults.
func LoadShardConfig(configPath string) (*ShardConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ME")
	v.AutomaticEnv()
	v.SetDefault("submit_port", 8080)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("wal_size_mib", 64)
	v.SetDefault("ring_buffer_size", 131072)
	v.SetDefault("publish_topic", "match-events")
	for _, key := range []string{"shard_id", "symbols", "broker_address", "wal_path"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if raw := v.GetString("symbols"); raw != "" && len(v.GetStringSlice("symbols")) == 0 {
		v.Set("symbols", splitCSV(raw))
	}

	cfg := &ShardConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal shard config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ShardConfig) validate() error {
	if c.ShardID == "" {
		return fmt.Errorf("config: shard_id is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols is required")
	}
	if c.SubmitPort <= 0 {
		return fmt.Errorf("config: submit_port must be positive")
	}
	if c.MetricsPort <= 0 {
		return fmt.Errorf("config: metrics_port must be positive")
	}
	if c.WALPath == "" {
		return fmt.Errorf("config: wal_path is required")
	}
	if c.RingBufferSize == 0 || c.RingBufferSize&(c.RingBufferSize-1) != 0 {
		return fmt.Errorf("config: ring_buffer_size must be a power of two")
	}
	return nil
}

// WALSizeBytes converts the configured MiB size to bytes.
func (c *ShardConfig) WALSizeBytes() int64 {
	return c.WALSizeMiB * 1024 * 1024
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
