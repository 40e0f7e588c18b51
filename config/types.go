package config

// Storage selects the persistent backend of the ledger.
type Storage struct {
	// Backend is one of "leveldb", "bolt" or "memory".
	Backend string `toml:"Backend" yaml:"backend"`
}

// Currency identifies the base currency mint and the key allowed to issue it.
type Currency struct {
	Mint               string `toml:"Mint" yaml:"mint"`
	Issuer             string `toml:"Issuer" yaml:"issuer"`
	IssuerKeystorePath string `toml:"IssuerKeystorePath" yaml:"issuerKeystorePath"`
}

// Pool carries the engine knobs.
type Pool struct {
	MinDeposit           uint64 `toml:"MinDeposit" yaml:"minDeposit"`
	RequireCreatorPermit bool   `toml:"RequireCreatorPermit" yaml:"requireCreatorPermit"`
}

// RPC configures the HTTP gateway. Timeouts are in seconds.
type RPC struct {
	Address           string  `toml:"Address" yaml:"address"`
	ReadHeaderTimeout int     `toml:"ReadHeaderTimeout" yaml:"readHeaderTimeout"`
	ReadTimeout       int     `toml:"ReadTimeout" yaml:"readTimeout"`
	WriteTimeout      int     `toml:"WriteTimeout" yaml:"writeTimeout"`
	IdleTimeout       int     `toml:"IdleTimeout" yaml:"idleTimeout"`
	MaxBodyBytes      int64   `toml:"MaxBodyBytes" yaml:"maxBodyBytes"`
	RateLimitPerSec   float64 `toml:"RateLimitPerSec" yaml:"rateLimitPerSec"`
	RateLimitBurst    int     `toml:"RateLimitBurst" yaml:"rateLimitBurst"`
}

// Indexer configures the activity store. An empty driver disables it.
type Indexer struct {
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

type Logging struct {
	Level       string `toml:"Level" yaml:"level"`
	Environment string `toml:"Environment" yaml:"environment"`
	File        string `toml:"File" yaml:"file"`
	MaxSizeMB   int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups" yaml:"maxBackups"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}
