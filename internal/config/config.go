package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultName                 = "ghostnet"
	DefaultBindURI              = "mem://ghostnet"
	DefaultAdminAddr            = "127.0.0.1:7300"
	DefaultTimeoutThresholdMS   = 30_000
	DefaultGossipIntervalMS     = 5_000
	DefaultIdleBackoffInitialMS = 5
	DefaultIdleBackoffMaxMS     = 250
)

// NodeConfig is the on-disk form of one ghostnet node.
type NodeConfig struct {
	Name           string       `toml:"name"`
	BindURI        string       `toml:"bind_uri"`
	BootstrapNodes []string     `toml:"bootstrap_nodes"`
	Spaces         []SpaceEntry `toml:"spaces"`
	// Seed is a hex encoded 32 byte keypair seed; empty generates one.
	Seed string `toml:"seed"`

	TimeoutThresholdMS int64 `toml:"timeout_threshold_ms"`
	GossipIntervalMS   int64 `toml:"gossip_interval_ms"`
	EntryTTLMS         int64 `toml:"entry_ttl_ms"`

	AdminAddr   string   `toml:"admin_addr"`
	AdminTokens []string `toml:"admin_tokens"`
	CorsOrigins []string `toml:"cors_origins"`

	IdleBackoffInitialMS int64 `toml:"idle_backoff_initial_ms"`
	IdleBackoffMaxMS     int64 `toml:"idle_backoff_max_ms"`
}

type SpaceEntry struct {
	Space string `toml:"space"`
	Agent string `toml:"agent"`
}

func LoadNodeConfig(path string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	applyNodeDefaults(&cfg)
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// ParseNodeConfig decodes an in-memory document the same way LoadNodeConfig
// decodes a file.
func ParseNodeConfig(data []byte) (NodeConfig, error) {
	var cfg NodeConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("config parse failed: %w", err)
	}
	applyNodeDefaults(&cfg)
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyNodeDefaults(cfg *NodeConfig) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	cfg.BindURI = strings.TrimSpace(cfg.BindURI)
	if cfg.BindURI == "" {
		cfg.BindURI = DefaultBindURI
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = DefaultAdminAddr
	}
	if cfg.TimeoutThresholdMS == 0 {
		cfg.TimeoutThresholdMS = DefaultTimeoutThresholdMS
	}
	if cfg.GossipIntervalMS == 0 {
		cfg.GossipIntervalMS = DefaultGossipIntervalMS
	}
	if cfg.IdleBackoffInitialMS == 0 {
		cfg.IdleBackoffInitialMS = DefaultIdleBackoffInitialMS
	}
	if cfg.IdleBackoffMaxMS == 0 {
		cfg.IdleBackoffMaxMS = DefaultIdleBackoffMaxMS
	}
	nodes := make([]string, 0, len(cfg.BootstrapNodes))
	for _, uri := range cfg.BootstrapNodes {
		if v := strings.TrimSpace(uri); v != "" {
			nodes = append(nodes, v)
		}
	}
	cfg.BootstrapNodes = nodes
}

func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("node config missing name")
	}
	if strings.TrimSpace(cfg.BindURI) == "" {
		return fmt.Errorf("node config missing bind_uri")
	}
	if cfg.TimeoutThresholdMS < 0 || cfg.GossipIntervalMS < 0 || cfg.EntryTTLMS < 0 {
		return fmt.Errorf("node config durations must not be negative")
	}
	if cfg.IdleBackoffInitialMS < 0 || cfg.IdleBackoffMaxMS < 0 {
		return fmt.Errorf("node config idle backoff must not be negative")
	}
	if cfg.IdleBackoffMaxMS > 0 && cfg.IdleBackoffMaxMS < cfg.IdleBackoffInitialMS {
		return fmt.Errorf("idle_backoff_max_ms must be >= idle_backoff_initial_ms")
	}
	if _, err := DecodeSeed(cfg.Seed); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.Spaces))
	for i, sp := range cfg.Spaces {
		if err := ValidateSpaceEntry(sp); err != nil {
			return fmt.Errorf("spaces[%d] invalid: %w", i, err)
		}
		if _, ok := seen[sp.Space]; ok {
			return fmt.Errorf("spaces[%d] invalid: %s listed twice", i, sp.Space)
		}
		seen[sp.Space] = struct{}{}
	}
	return nil
}

func ValidateSpaceEntry(sp SpaceEntry) error {
	if strings.TrimSpace(sp.Space) == "" {
		return fmt.Errorf("space is required")
	}
	return nil
}

// DecodeSeed returns nil for an empty seed.
func DecodeSeed(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("seed is not hex: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}
	return seed, nil
}
