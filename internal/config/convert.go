package config

import (
	"time"

	"github.com/danmuck/ghostnet/internal/engine"
)

// EngineConfig maps a validated NodeConfig onto engine defaults.
func (cfg NodeConfig) EngineConfig() (engine.Config, error) {
	out := engine.DefaultConfig()
	out.Name = cfg.Name
	out.BindURI = cfg.BindURI
	out.BootstrapNodes = append(out.BootstrapNodes, cfg.BootstrapNodes...)
	for _, sp := range cfg.Spaces {
		out.Spaces = append(out.Spaces, engine.SpaceConfig{Space: sp.Space, Agent: sp.Agent})
	}
	out.TimeoutThreshold = millis(cfg.TimeoutThresholdMS)
	out.GossipInterval = millis(cfg.GossipIntervalMS)
	out.EntryTTL = millis(cfg.EntryTTLMS)
	seed, err := DecodeSeed(cfg.Seed)
	if err != nil {
		return engine.Config{}, err
	}
	out.Seed = seed
	return out, out.Validate()
}

func (cfg NodeConfig) IdleBackoff() (initial, maxDelay time.Duration) {
	return millis(cfg.IdleBackoffInitialMS), millis(cfg.IdleBackoffMaxMS)
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
