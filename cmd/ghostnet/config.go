package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ghostnet/internal/engine"
	"github.com/danmuck/ghostnet/internal/node"
)

type fileSpace struct {
	Space string `toml:"space"`
	Agent string `toml:"agent"`
}

type fileConfig struct {
	Name                 string      `toml:"name"`
	BindURI              string      `toml:"bind_uri"`
	BootstrapNodes       []string    `toml:"bootstrap_nodes"`
	Spaces               []fileSpace `toml:"spaces"`
	Seed                 string      `toml:"seed"`
	TimeoutThreshold     string      `toml:"timeout_threshold"`
	TimeoutThresholdMS   int64       `toml:"timeout_threshold_ms"`
	GossipInterval       string      `toml:"gossip_interval"`
	GossipIntervalMS     int64       `toml:"gossip_interval_ms"`
	EntryTTLMS           int64       `toml:"entry_ttl_ms"`
	AdminAddr            string      `toml:"admin_addr"`
	AdminTokens          []string    `toml:"admin_tokens"`
	CorsOrigins          []string    `toml:"cors_origins"`
	IdleBackoffInitialMS int64       `toml:"idle_backoff_initial_ms"`
	IdleBackoffMaxMS     int64       `toml:"idle_backoff_max_ms"`
}

type nodeConfig struct {
	Engine      engine.Config
	Backoff     node.BackoffConfig
	AdminAddr   string
	AdminTokens []string
	CorsOrigins []string
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		Engine:  engine.DefaultConfig(),
		Backoff: node.DefaultBackoffConfig(),
	}
}

func loadNodeConfig(path string) (nodeConfig, error) {
	cfg := defaultNodeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nodeConfig{}, fmt.Errorf("load ghostnet config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Engine.Name = name
		}
	}

	if meta.IsDefined("bind_uri") {
		if uri := strings.TrimSpace(raw.BindURI); uri != "" {
			cfg.Engine.BindURI = uri
		}
	}

	if meta.IsDefined("bootstrap_nodes") {
		cfg.Engine.BootstrapNodes = normalizeList(raw.BootstrapNodes)
	}

	if meta.IsDefined("spaces") {
		cfg.Engine.Spaces = make([]engine.SpaceConfig, 0, len(raw.Spaces))
		for _, sp := range raw.Spaces {
			cfg.Engine.Spaces = append(cfg.Engine.Spaces, engine.SpaceConfig{
				Space: strings.TrimSpace(sp.Space),
				Agent: strings.TrimSpace(sp.Agent),
			})
		}
	}

	if meta.IsDefined("seed") {
		seed, err := hex.DecodeString(strings.TrimSpace(raw.Seed))
		if err != nil {
			return nodeConfig{}, fmt.Errorf("parse seed: %w", err)
		}
		cfg.Engine.Seed = seed
	}

	if meta.IsDefined("timeout_threshold") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TimeoutThreshold))
		if err != nil {
			return nodeConfig{}, fmt.Errorf("parse timeout_threshold: %w", err)
		}
		cfg.Engine.TimeoutThreshold = d
	}

	if meta.IsDefined("timeout_threshold_ms") {
		cfg.Engine.TimeoutThreshold = time.Duration(raw.TimeoutThresholdMS) * time.Millisecond
	}

	if meta.IsDefined("gossip_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.GossipInterval))
		if err != nil {
			return nodeConfig{}, fmt.Errorf("parse gossip_interval: %w", err)
		}
		cfg.Engine.GossipInterval = d
	}

	if meta.IsDefined("gossip_interval_ms") {
		cfg.Engine.GossipInterval = time.Duration(raw.GossipIntervalMS) * time.Millisecond
	}

	if meta.IsDefined("entry_ttl_ms") {
		cfg.Engine.EntryTTL = time.Duration(raw.EntryTTLMS) * time.Millisecond
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("admin_tokens") {
		cfg.AdminTokens = normalizeList(raw.AdminTokens)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("idle_backoff_initial_ms") {
		cfg.Backoff.InitialDelay = time.Duration(raw.IdleBackoffInitialMS) * time.Millisecond
	}

	if meta.IsDefined("idle_backoff_max_ms") {
		cfg.Backoff.MaxDelay = time.Duration(raw.IdleBackoffMaxMS) * time.Millisecond
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nodeConfig{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, uri := range in {
		v := strings.TrimSpace(uri)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
