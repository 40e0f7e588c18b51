package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"sharepool/crypto"
)

const (
	DefaultChainID    = uint64(187)
	DefaultMinDeposit = uint64(100_000_000)
)

type Config struct {
	ChainID   uint64    `toml:"ChainID" yaml:"chainId"`
	DataDir   string    `toml:"DataDir" yaml:"dataDir"`
	Storage   Storage   `toml:"storage" yaml:"storage"`
	Currency  Currency  `toml:"currency" yaml:"currency"`
	Pool      Pool      `toml:"pool" yaml:"pool"`
	RPC       RPC       `toml:"rpc" yaml:"rpc"`
	Indexer   Indexer   `toml:"indexer" yaml:"indexer"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
}

// Default returns the configuration of a single local node.
func Default() *Config {
	return &Config{
		ChainID: DefaultChainID,
		DataDir: "./sharepool-data",
		Storage: Storage{Backend: "leveldb"},
		Currency: Currency{
			Mint: DefaultCurrencyMint().String(),
		},
		Pool: Pool{MinDeposit: DefaultMinDeposit},
		RPC: RPC{
			Address:           ":8080",
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			MaxBodyBytes:      1 << 20,
			RateLimitPerSec:   20,
			RateLimitBurst:    40,
		},
		Indexer: Indexer{Driver: "sqlite", DSN: "sharepool-activity.db"},
		Logging: Logging{Level: "info", Environment: "local", MaxSizeMB: 100, MaxBackups: 5},
	}
}

// DefaultCurrencyMint is the well-known address of the base currency mint.
func DefaultCurrencyMint() crypto.Address {
	return crypto.MustAddress(crypto.Keccak256([]byte("sharepool/currency"))[12:])
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration from path. A missing file is replaced by the
// defaults, and a currency issuer keystore sealed with passphrase is generated
// when no issuer is configured yet.
func Load(path, passphrase string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := ensureIssuer(path, cfg, passphrase); err != nil {
			return nil, err
		}
		return cfg, nil
	case err != nil:
		return nil, err
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.Currency.Issuer) == "" {
		if err := ensureIssuer(path, cfg, passphrase); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown field %s", undecoded[0])
	}
	return nil
}

// ensureIssuer loads or creates the issuer keystore, records its address and
// persists the result.
func ensureIssuer(configPath string, cfg *Config, passphrase string) error {
	keystorePath := cfg.Currency.IssuerKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	var key *crypto.PrivateKey
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, err = crypto.GeneratePrivateKey()
		if err != nil {
			return err
		}
		if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		key, err = crypto.LoadFromKeystore(keystorePath, passphrase)
		if err != nil {
			return fmt.Errorf("issuer keystore %s: %w", keystorePath, err)
		}
	}

	cfg.Currency.IssuerKeystorePath = keystorePath
	cfg.Currency.Issuer = key.PubKey().Address().String()
	return Persist(configPath, cfg)
}

// Persist writes cfg to path in the format implied by its extension.
func Persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "issuer.keystore")
}

// CurrencyMintAddress decodes the configured currency mint.
func (c *Config) CurrencyMintAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.Currency.Mint))
}

// CurrencyIssuerAddress decodes the configured currency issuer.
func (c *Config) CurrencyIssuerAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.Currency.Issuer))
}
