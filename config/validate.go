package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be positive")
	}
	switch c.Storage.Backend {
	case "leveldb", "bolt":
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for %s backend", c.Storage.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := c.CurrencyMintAddress(); err != nil {
		return fmt.Errorf("config: currency.Mint: %w", err)
	}
	if _, err := c.CurrencyIssuerAddress(); err != nil {
		return fmt.Errorf("config: currency.Issuer: %w", err)
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		return fmt.Errorf("config: rpc.Address required")
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("config: rpc rate limit must not be negative")
	}
	if c.RPC.RateLimitPerSec > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("config: rpc.RateLimitBurst required when rate limiting")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("config: rpc.MaxBodyBytes must not be negative")
	}
	switch c.Indexer.Driver {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("config: indexer.DSN required for %s", c.Indexer.Driver)
		}
	default:
		return fmt.Errorf("config: unknown indexer driver %q", c.Indexer.Driver)
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry.Endpoint required when exporting")
	}
	return nil
}
