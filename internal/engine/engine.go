// Package engine composes one gateway per space behind the client protocol.
// The network gateway is always present; other spaces are joined and left
// by client requests.
package engine

import (
	"fmt"
	"time"

	"github.com/danmuck/ghostnet/internal/crypto"
	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/discovery"
	"github.com/danmuck/ghostnet/internal/gateway"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/observability"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// TransportFactory returns a fresh unbound Transport for one gateway.
type TransportFactory func() (transport.Transport, error)

// MemoryTransports creates transports on n.
func MemoryTransports(n *transport.MemoryNetwork) TransportFactory {
	return func() (transport.Transport, error) {
		return n.NewTransport(), nil
	}
}

// Deps are the capabilities an Engine is built from.
type Deps struct {
	Crypto     crypto.System
	Transports TransportFactory
	// Discovery defaults to a static list of Config.BootstrapNodes.
	Discovery discovery.Discovery
}

type gatewayParent = ghost.Parent[gateway.RequestToChild, gateway.RequestToChildResponse, gateway.RequestToParent, gateway.RequestToParentResponse, *gateway.Actor]

type space struct {
	key   string
	agent string
	uri   string
	gw    *gatewayParent
	// held are peers already reported to the client as PeerHeld.
	held map[string]struct{}
}

// Engine is the top-level actor. Its owner drives it with Process.
type Engine struct {
	ghost.Hosted[ClientRequest, ClientResponse, ClientEvent, ghost.Ack]

	cfg        Config
	identity   *crypto.Identity
	discovery  discovery.Discovery
	transports TransportFactory
	opts       []ghost.EndpointOption

	order  []string
	spaces map[string]*space

	started bool
	closed  bool
	msgSeq  uint64
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Crypto == nil || deps.Transports == nil {
		return nil, fmt.Errorf("%w: crypto and transports are required", ErrInvalidConfig)
	}
	identity, err := crypto.NewIdentity(deps.Crypto, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("engine: identity: %w", err)
	}
	disc := deps.Discovery
	if disc == nil {
		disc = discovery.NewStatic(cfg.BootstrapNodes)
	}
	opts := []ghost.EndpointOption{ghost.WithClock(cfg.Now)}
	e := &Engine{
		Hosted:     ghost.NewHosted[ClientRequest, ClientResponse, ClientEvent, ghost.Ack]("engine", opts...),
		cfg:        cfg,
		identity:   identity,
		discovery:  disc,
		transports: deps.Transports,
		opts:       opts,
		order:      make([]string, 0),
		spaces:     make(map[string]*space),
	}
	if _, err := e.addSpace(NetworkSpace, identity.Address()); err != nil {
		return nil, err
	}
	log.Info().Str("address", identity.Address()).Str("uri", cfg.BindURI).Msg("engine.Engine.new")
	return e, nil
}

// Address is this node's address.
func (e *Engine) Address() string {
	return e.identity.Address()
}

func (e *Engine) Name() string {
	return e.cfg.Name
}

// Spaces lists joined space keys in join order, NetworkSpace first.
func (e *Engine) Spaces() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

func (e *Engine) addSpace(key, agent string) (*space, error) {
	t, err := e.transports()
	if err != nil {
		return nil, fmt.Errorf("engine: transport for %s: %w", key, err)
	}
	bound, err := t.Bind(SpaceBindURI(e.cfg.BindURI, key))
	if err != nil {
		return nil, fmt.Errorf("engine: bind %s: %w", key, err)
	}

	dcfg := dht.DefaultConfig(dht.PeerData{Address: agent, URI: bound, Timestamp: dht.Millis(e.cfg.Now())})
	dcfg.TimeoutThreshold = e.cfg.TimeoutThreshold
	dcfg.GossipInterval = e.cfg.GossipInterval
	dcfg.EntryTTL = e.cfg.EntryTTL
	dcfg.Now = e.cfg.Now
	d, err := dht.NewMirrorDht(dcfg)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	actor, err := gateway.NewActor(key, t, d, e.opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	sp := &space{key: key, agent: agent, uri: bound, held: make(map[string]struct{})}
	gw, err := ghost.NewParent[gateway.RequestToChild, gateway.RequestToChildResponse, gateway.RequestToParent, gateway.RequestToParentResponse](
		"engine."+key,
		actor,
		func(msg *ghost.Message[gateway.RequestToParent, gateway.RequestToParentResponse]) error {
			return e.onGatewayEvent(sp, msg)
		},
	)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	sp.gw = gw
	e.spaces[key] = sp
	e.order = append(e.order, key)
	log.Debug().Str("space", key).Str("agent", agent).Str("uri", bound).Msg("engine.Engine.add_space")
	return sp, nil
}

func (e *Engine) removeSpace(key string) error {
	sp, ok := e.spaces[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpace, key)
	}
	delete(e.spaces, key)
	for i, k := range e.order {
		if k == key {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	err := sp.gw.Actor().Close()
	sp.gw.Close()
	observability.ForgetSpace(e.cfg.Name, key)
	return err
}

// Process runs one tick: start-up on the first call, then client requests,
// then every gateway in join order.
func (e *Engine) Process() (ghost.WorkWasDone, error) {
	defer e.Guard.Enter()()
	if e.closed {
		return false, ErrClosed
	}

	var errs error
	work := false
	if !e.started {
		e.started = true
		work = true
		errs = multierr.Append(errs, e.start())
	}

	w, err := e.Self().ProcessWith(e.handleClient)
	work = work || w
	errs = multierr.Append(errs, err)

	for _, key := range e.Spaces() {
		sp, ok := e.spaces[key]
		if !ok {
			continue
		}
		w, err := sp.gw.Process()
		work = work || w
		if err != nil {
			err = fmt.Errorf("space %s: %w", key, err)
			errs = multierr.Append(errs, err)
			e.emit(ErrorOccurred{Space: key, Err: err})
		}
		if gw := sp.gw.Actor(); gw != nil {
			observability.SetHeld(e.cfg.Name, key, len(gw.PeerList()), len(gw.EntryAddressList()))
		}
	}

	observability.RecordTick(e.cfg.Name, work)
	return work, errs
}

// start advertises, bootstraps the network gateway from discovery and joins
// configured spaces.
func (e *Engine) start() error {
	var errs error
	if err := e.discovery.Advertise(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engine: advertise: %w", err))
	}
	uris, err := e.discovery.Discover()
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engine: discover: %w", err))
	}
	network := e.spaces[NetworkSpace]
	for _, uri := range uris {
		if uri == network.uri {
			continue
		}
		e.connect(network, uri, func(err error) {
			e.emit(ErrorOccurred{Space: NetworkSpace, Err: fmt.Errorf("engine: bootstrap %s: %w", uri, err)})
		})
	}
	for _, sc := range e.cfg.Spaces {
		if _, err := e.joinSpace(sc.Space, sc.Agent); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close releases discovery and closes every gateway, newest first.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var errs error
	for i := len(e.order) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, e.removeSpace(e.order[i]))
	}
	errs = multierr.Append(errs, e.discovery.Flush())
	errs = multierr.Append(errs, e.discovery.Release())
	log.Info().Str("address", e.Address()).Msg("engine.Engine.close")
	return errs
}

func (e *Engine) emit(ev ClientEvent) {
	if err := e.Self().Publish(ev); err != nil {
		log.Warn().Err(err).Msgf("engine.Engine.emit %T", ev)
	}
}
