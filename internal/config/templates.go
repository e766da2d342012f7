package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "node":
		return nodeTemplate, nil
	case "peer":
		return peerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const nodeTemplate = `name = "ghostnet"
bind_uri = "mem://ghostnet"
bootstrap_nodes = []
timeout_threshold_ms = 30000
gossip_interval_ms = 5000
entry_ttl_ms = 0
admin_addr = "127.0.0.1:7300"
admin_tokens = []
cors_origins = ["http://localhost:3000"]
idle_backoff_initial_ms = 5
idle_backoff_max_ms = 250

[[spaces]]
space = "lobby"
`

const peerTemplate = `name = "ghostnet-peer"
bind_uri = "mem://ghostnet-peer"
bootstrap_nodes = ["mem://ghostnet"]
admin_addr = "127.0.0.1:7301"

[[spaces]]
space = "lobby"
agent = "peer-agent"
`
