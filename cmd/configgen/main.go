package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/danmuck/ghostnet/internal/config"
)

func main() {
	kind := flag.String("kind", "node", "config kind: node|peer")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/ghostnet/config.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	printOnly := flag.Bool("print", false, "print the template to stdout instead of writing it")
	flag.Parse()

	if *printOnly {
		template, err := config.Template(*kind)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(template)
		return
	}

	if *validate {
		path := *input
		if path == "" {
			path = "cmd/ghostnet/config.toml"
		}
		cfg, err := config.LoadNodeConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		ec, err := cfg.EngineConfig()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated node config at %s (name=%s bind=%s spaces=%d bootstrap=%d)",
			path, ec.Name, ec.BindURI, len(ec.Spaces), len(ec.BootstrapNodes))
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "node":
			target = "cmd/ghostnet/config.toml"
		case "peer":
			target = "cmd/ghostnet/peer.config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
