package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ghostnet/internal/crypto"
	"github.com/danmuck/ghostnet/internal/engine"
	"github.com/danmuck/ghostnet/internal/node"
	"github.com/danmuck/ghostnet/internal/observability"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ghostnet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("config", "", "node config path (defaults built in); transports are in-process mem:// only, so bootstrap_nodes reach nodes of this process and nothing else")
	admin := flag.String("admin", "", "admin listen address override")
	flag.Parse()

	cfg := defaultNodeConfig()
	if *path != "" {
		loaded, err := loadNodeConfig(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}

	observability.InitLogger(cfg.Engine.Name)
	observability.RegisterMetrics()

	sys, err := crypto.Init()
	if err != nil {
		return err
	}
	network := transport.NewMemoryNetwork()
	runner, err := node.New(node.Options{
		Engine:      cfg.Engine,
		Deps:        engine.Deps{Crypto: sys, Transports: engine.MemoryTransports(network)},
		Backoff:     cfg.Backoff,
		AdminAddr:   cfg.AdminAddr,
		AdminTokens: cfg.AdminTokens,
		CorsOrigins: cfg.CorsOrigins,
		OnEvent:     logEvent,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info().Str("name", cfg.Engine.Name).Str("uri", cfg.Engine.BindURI).Msg("ghostnet.start")
	return runner.Run(ctx)
}

func logEvent(ev engine.ClientEvent) {
	switch e := ev.(type) {
	case engine.Connected:
		log.Info().Str("space", e.Space).Str("uri", e.URI).Msg("ghostnet.connected")
	case engine.Disconnected:
		log.Info().Str("space", e.Space).Str("uri", e.URI).Msg("ghostnet.disconnected")
	case engine.PeerHeld:
		log.Info().Str("space", e.Space).Str("peer", e.Peer.Address).Msg("ghostnet.peer_held")
	case engine.PeerTimedOut:
		log.Info().Str("space", e.Space).Str("peer", e.Peer).Msg("ghostnet.peer_timed_out")
	case engine.HandleStoreEntry:
		log.Info().Str("space", e.Space).Str("entry", e.Entry.Address).Msg("ghostnet.store_entry")
	case engine.HandleDropEntry:
		log.Info().Str("space", e.Space).Str("entry", e.Address).Msg("ghostnet.drop_entry")
	case engine.HandleSendDirectMessage:
		log.Info().Str("space", e.Space).Str("from", e.From).Int("bytes", len(e.Content)).Msg("ghostnet.direct_message")
	case engine.ErrorOccurred:
		log.Warn().Str("space", e.Space).Err(e.Err).Msg("ghostnet.error")
	}
}
