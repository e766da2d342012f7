package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ghostnet/internal/dht"
)

// NetworkSpace keys the gateway every node joins on start.
const NetworkSpace = "network"

type SpaceConfig struct {
	Space string
	Agent string
}

type Config struct {
	Name    string
	BindURI string
	// BootstrapNodes seed the default static discovery.
	BootstrapNodes []string
	// Spaces are joined on the first tick.
	Spaces []SpaceConfig

	TimeoutThreshold time.Duration
	GossipInterval   time.Duration
	EntryTTL         time.Duration

	// Seed derives the node keypair; empty generates a fresh one.
	Seed []byte
	Now  func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Name:             "ghostnet",
		BindURI:          "mem://ghostnet",
		BootstrapNodes:   make([]string, 0),
		Spaces:           make([]SpaceConfig, 0),
		TimeoutThreshold: dht.DefaultTimeoutThreshold,
		GossipInterval:   dht.DefaultGossipInterval,
		Now:              time.Now,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.BindURI) == "" {
		return fmt.Errorf("%w: bind uri is required", ErrInvalidConfig)
	}
	if c.TimeoutThreshold < 0 || c.GossipInterval < 0 || c.EntryTTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Spaces))
	for _, sp := range c.Spaces {
		if err := validateSpace(sp.Space); err != nil {
			return err
		}
		if _, ok := seen[sp.Space]; ok {
			return fmt.Errorf("%w: %s listed twice", ErrSpaceExists, sp.Space)
		}
		seen[sp.Space] = struct{}{}
	}
	return nil
}

func validateSpace(space string) error {
	space = strings.TrimSpace(space)
	if space == "" {
		return fmt.Errorf("%w: space is required", ErrInvalidConfig)
	}
	if space == NetworkSpace {
		return fmt.Errorf("%w: %s", ErrReservedSpace, space)
	}
	if strings.ContainsAny(space, "/ ") {
		return fmt.Errorf("%w: space %q contains separators", ErrInvalidConfig, space)
	}
	return nil
}

// SpaceBindURI is the URI a node binds for space, derived from its network
// URI.
func SpaceBindURI(base, space string) string {
	if space == NetworkSpace {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + space
}
