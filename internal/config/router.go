package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RouterConfig is the fleet router's startup configuration: a shard id
// to base URL map and a shard id to owned-symbols map, both supplied as
// structured strings (key=value pairs separated by semicolons; symbol
// lists within a value separated by pipes).
type RouterConfig struct {
	ListenPort      int
	MetricsPort     int
	ShardURLs       map[string]string
	ShardSymbols    map[string][]string
	SymbolToShard   map[string]string
	ShardTimeout    time.Duration
}

// LoadRouterConfig reads router configuration from environment variables
// prefixed MEGW.
func LoadRouterConfig(configPath string) (*RouterConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("MEGW")
	v.AutomaticEnv()
	v.SetDefault("listen_port", 8090)
	v.SetDefault("metrics_port", 9091)
	v.SetDefault("shard_timeout_seconds", 5)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	shardURLs, err := parseKeyValue(v.GetString("shard_urls"))
	if err != nil {
		return nil, fmt.Errorf("config: shard_urls: %w", err)
	}
	shardSymbolsRaw, err := parseKeyValue(v.GetString("shard_symbols"))
	if err != nil {
		return nil, fmt.Errorf("config: shard_symbols: %w", err)
	}

	shardSymbols := make(map[string][]string, len(shardSymbolsRaw))
	symbolToShard := make(map[string]string)
	for shardID, symbolsCSV := range shardSymbolsRaw {
		symbols := strings.Split(symbolsCSV, "|")
		shardSymbols[shardID] = symbols
		for _, symbol := range symbols {
			symbolToShard[symbol] = shardID
		}
	}

	cfg := &RouterConfig{
		ListenPort:    v.GetInt("listen_port"),
		MetricsPort:   v.GetInt("metrics_port"),
		ShardURLs:     shardURLs,
		ShardSymbols:  shardSymbols,
		SymbolToShard: symbolToShard,
		ShardTimeout:  time.Duration(v.GetInt("shard_timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RouterConfig) validate() error {
	if len(c.ShardURLs) == 0 {
		return fmt.Errorf("config: shard_urls is required")
	}
	if len(c.SymbolToShard) == 0 {
		return fmt.Errorf("config: shard_symbols is required")
	}
	for shardID := range c.ShardSymbols {
		if _, ok := c.ShardURLs[shardID]; !ok {
			return fmt.Errorf("config: shard %q has symbols but no URL", shardID)
		}
	}
	return nil
}

// parseKeyValue parses "k1=v1;k2=v2" into a map. An empty string yields
// an empty, non-nil map.
func parseKeyValue(raw string) (map[string]string, error) {
	out := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed entry %q, expected key=value", pair)
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out, nil
}
