package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ghostnet/internal/testutil/testlog"
)

func TestTemplatesLoadAndConvert(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"node", "peer"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		cfg, err := LoadNodeConfig(path)
		if err != nil {
			t.Fatalf("load %s template: %v", kind, err)
		}
		ec, err := cfg.EngineConfig()
		if err != nil {
			t.Fatalf("convert %s template: %v", kind, err)
		}
		if ec.Name != cfg.Name || ec.BindURI != cfg.BindURI {
			t.Fatalf("unexpected engine identity: %+v", ec)
		}
		if len(ec.Spaces) != 1 || ec.Spaces[0].Space != "lobby" {
			t.Fatalf("unexpected spaces: %+v", ec.Spaces)
		}
	}
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "min.toml")
	if err := os.WriteFile(path, []byte("bootstrap_nodes = [\" mem://a \", \"\"]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != DefaultName || cfg.BindURI != DefaultBindURI || cfg.AdminAddr != DefaultAdminAddr {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.BootstrapNodes) != 1 || cfg.BootstrapNodes[0] != "mem://a" {
		t.Fatalf("bootstrap nodes not normalized: %+v", cfg.BootstrapNodes)
	}
	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if ec.TimeoutThreshold != 30*time.Second || ec.GossipInterval != 5*time.Second || ec.EntryTTL != 0 {
		t.Fatalf("unexpected durations: %+v", ec)
	}
	if ec.Seed != nil {
		t.Fatalf("expected no seed")
	}
	initial, maxDelay := cfg.IdleBackoff()
	if initial != 5*time.Millisecond || maxDelay != 250*time.Millisecond {
		t.Fatalf("unexpected backoff: %v %v", initial, maxDelay)
	}
}

func TestParseNodeConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"negative":   "gossip_interval_ms = -1\n",
		"backoff":    "idle_backoff_initial_ms = 100\nidle_backoff_max_ms = 10\n",
		"seed hex":   "seed = \"zz\"\n",
		"seed len":   "seed = \"abcd\"\n",
		"no space":   "[[spaces]]\nagent = \"a\"\n",
		"duplicate":  "[[spaces]]\nspace = \"a\"\n[[spaces]]\nspace = \"a\"\n",
		"bad syntax": "name = \n",
	}
	for name, doc := range cases {
		if _, err := ParseNodeConfig([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEngineConfigRejectsReservedSpace(t *testing.T) {
	testlog.Start(t)
	cfg, err := ParseNodeConfig([]byte("[[spaces]]\nspace = \"network\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatalf("expected reserved space error")
	}
}

func TestSeedDecodes(t *testing.T) {
	testlog.Start(t)
	seed := strings.Repeat("ab", 32)
	cfg, err := ParseNodeConfig([]byte("seed = \"" + seed + "\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(ec.Seed) != 32 || ec.Seed[0] != 0xab {
		t.Fatalf("unexpected seed: %x", ec.Seed)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "node.toml")
	if err := WriteTemplate(path, "node", false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, "node", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "node", true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
