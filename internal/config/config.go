package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Chain struct {
		Name         string   `yaml:"name"`
		RPCEndpoints []string `yaml:"rpc_endpoints"`
		WSEndpoints  []string `yaml:"ws_endpoints"`
	} `yaml:"chain"`
	Indexer struct {
		PollIntervalMs       int64  `yaml:"poll_interval_ms"`
		PageLimit            int    `yaml:"page_limit"`
		RPCMaxRetries        int    `yaml:"rpc_max_retries"`
		RPCRetryDelayMs      int64  `yaml:"rpc_retry_delay_ms"`
		RPCBackoffMaxMs      int64  `yaml:"rpc_backoff_max_ms"`
		RPCTimeoutMs         int64  `yaml:"rpc_timeout_ms"`
		RPCBreakerThreshold  int    `yaml:"rpc_breaker_threshold"`
		RPCBreakerCooldownMs int64  `yaml:"rpc_breaker_cooldown_ms"`
		RPCFailoverThreshold int    `yaml:"rpc_failover_threshold"`
		RPCCacheTTLMs        int64  `yaml:"rpc_cache_ttl_ms"`
		RequireMemoMatch     bool   `yaml:"require_memo_match"`
		MemoPrefix           string `yaml:"memo_prefix"`
		HealthAddr           string `yaml:"health_addr"`
	} `yaml:"indexer"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func (c *Config) PollInterval() time.Duration  { return time.Duration(c.Indexer.PollIntervalMs) * time.Millisecond }
func (c *Config) RPCRetryDelay() time.Duration { return time.Duration(c.Indexer.RPCRetryDelayMs) * time.Millisecond }
func (c *Config) RPCBackoffMax() time.Duration { return time.Duration(c.Indexer.RPCBackoffMaxMs) * time.Millisecond }
func (c *Config) RPCTimeout() time.Duration    { return time.Duration(c.Indexer.RPCTimeoutMs) * time.Millisecond }
func (c *Config) RPCBreakerCooldown() time.Duration {
	return time.Duration(c.Indexer.RPCBreakerCooldownMs) * time.Millisecond
}
func (c *Config) RPCCacheTTL() time.Duration { return time.Duration(c.Indexer.RPCCacheTTLMs) * time.Millisecond }

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":4000"
	cfg.Chain.Name = "solana"
	cfg.Indexer.PollIntervalMs = 15000
	cfg.Indexer.PageLimit = 20
	cfg.Indexer.RPCMaxRetries = 3
	cfg.Indexer.RPCRetryDelayMs = 1000
	cfg.Indexer.RPCBackoffMaxMs = 30000
	cfg.Indexer.RPCTimeoutMs = 15000
	cfg.Indexer.RPCBreakerThreshold = 5
	cfg.Indexer.RPCBreakerCooldownMs = 60000
	cfg.Indexer.RPCFailoverThreshold = 3
	cfg.Indexer.RPCCacheTTLMs = 60000
	cfg.Indexer.HealthAddr = ":4100"
	cfg.Log.Level = "info"
	return cfg
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return errors.New("db.dsn is required")
	}
	if cfg.Chain.Name == "" {
		return errors.New("chain.name is required")
	}
	if len(cfg.Chain.RPCEndpoints) == 0 {
		return errors.New("chain.rpc_endpoints must list at least one endpoint")
	}
	if cfg.Indexer.PollIntervalMs <= 0 {
		return errors.New("indexer.poll_interval_ms must be positive")
	}
	if cfg.Indexer.PageLimit <= 0 {
		return errors.New("indexer.page_limit must be positive")
	}
	if cfg.Indexer.RPCMaxRetries < 0 {
		return errors.New("indexer.rpc_max_retries must not be negative")
	}
	if cfg.Indexer.RPCRetryDelayMs <= 0 || cfg.Indexer.RPCBackoffMaxMs <= 0 || cfg.Indexer.RPCTimeoutMs <= 0 {
		return errors.New("indexer retry/backoff/timeout values must be positive")
	}
	if cfg.Indexer.RPCBreakerThreshold < 1 {
		return errors.New("indexer.rpc_breaker_threshold must be at least 1")
	}
	if cfg.Indexer.RPCBreakerCooldownMs <= 0 {
		return errors.New("indexer.rpc_breaker_cooldown_ms must be positive")
	}
	if cfg.Indexer.RPCFailoverThreshold < 1 {
		return errors.New("indexer.rpc_failover_threshold must be at least 1")
	}
	if cfg.Indexer.RPCCacheTTLMs <= 0 {
		return errors.New("indexer.rpc_cache_ttl_ms must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug/info/warn/error", cfg.Log.Level)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("CHAIN"); v != "" {
		cfg.Chain.Name = v
	}
	if v := os.Getenv("RPC_ENDPOINTS"); v != "" {
		cfg.Chain.RPCEndpoints = splitCommaList(v)
	}
	if v := os.Getenv("WS_ENDPOINTS"); v != "" {
		cfg.Chain.WSEndpoints = splitCommaList(v)
	}
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		cfg.Indexer.PollIntervalMs = atoi64Or(cfg.Indexer.PollIntervalMs, v)
	}
	if v := os.Getenv("PAGE_LIMIT"); v != "" {
		cfg.Indexer.PageLimit = atoiOr(cfg.Indexer.PageLimit, v)
	}
	if v := os.Getenv("RPC_MAX_RETRIES"); v != "" {
		cfg.Indexer.RPCMaxRetries = atoiOr(cfg.Indexer.RPCMaxRetries, v)
	}
	if v := os.Getenv("RPC_RETRY_DELAY_MS"); v != "" {
		cfg.Indexer.RPCRetryDelayMs = atoi64Or(cfg.Indexer.RPCRetryDelayMs, v)
	}
	if v := os.Getenv("RPC_BACKOFF_MAX_MS"); v != "" {
		cfg.Indexer.RPCBackoffMaxMs = atoi64Or(cfg.Indexer.RPCBackoffMaxMs, v)
	}
	if v := os.Getenv("RPC_TIMEOUT_MS"); v != "" {
		cfg.Indexer.RPCTimeoutMs = atoi64Or(cfg.Indexer.RPCTimeoutMs, v)
	}
	if v := os.Getenv("RPC_BREAKER_THRESHOLD"); v != "" {
		cfg.Indexer.RPCBreakerThreshold = atoiOr(cfg.Indexer.RPCBreakerThreshold, v)
	}
	if v := os.Getenv("RPC_BREAKER_COOLDOWN_MS"); v != "" {
		cfg.Indexer.RPCBreakerCooldownMs = atoi64Or(cfg.Indexer.RPCBreakerCooldownMs, v)
	}
	if v := os.Getenv("RPC_FAILOVER_THRESHOLD"); v != "" {
		cfg.Indexer.RPCFailoverThreshold = atoiOr(cfg.Indexer.RPCFailoverThreshold, v)
	}
	if v := os.Getenv("RPC_CACHE_TTL_MS"); v != "" {
		cfg.Indexer.RPCCacheTTLMs = atoi64Or(cfg.Indexer.RPCCacheTTLMs, v)
	}
	if v := os.Getenv("REQUIRE_MEMO_MATCH"); v != "" {
		cfg.Indexer.RequireMemoMatch = boolOr(cfg.Indexer.RequireMemoMatch, v)
	}
	if v, ok := os.LookupEnv("INVOICE_MEMO_PREFIX"); ok {
		cfg.Indexer.MemoPrefix = v
	}
	if v := os.Getenv("HEALTH_ADDR"); v != "" {
		cfg.Indexer.HealthAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func boolOr(fallback bool, v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
