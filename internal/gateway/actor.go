package gateway

import (
	"fmt"
	"sort"

	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

type (
	transportChild = ghost.Parent[transport.RequestToChild, transport.RequestToChildResponse, transport.RequestToParent, transport.RequestToParentResponse, *transport.Actor]
	dhtChild       = ghost.Parent[dht.RequestToChild, dht.RequestToChildResponse, dht.RequestToParent, dht.RequestToParentResponse, *dht.Actor]
	inflight       = *ghost.Message[RequestToChild, RequestToChildResponse]
)

// Actor is the gateway for one space. Each tick drains its own inbox, then
// the Transport child, then the DHT child.
type Actor struct {
	ghost.Hosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse]

	space       string
	transport   *transportChild
	dht         *dhtChild
	connections map[string]string // uri -> connection id
}

func NewActor(space string, t transport.Transport, d dht.Dht, opts ...ghost.EndpointOption) (*Actor, error) {
	prefix := "gateway." + space
	a := &Actor{
		Hosted:      ghost.NewHosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse](prefix, opts...),
		space:       space,
		connections: make(map[string]string),
	}
	tp, err := ghost.NewParent[transport.RequestToChild, transport.RequestToChildResponse, transport.RequestToParent, transport.RequestToParentResponse](
		prefix+".transport",
		transport.NewActor(prefix+".transport", t, opts...),
		a.onTransportEvent,
	)
	if err != nil {
		return nil, err
	}
	dp, err := ghost.NewParent[dht.RequestToChild, dht.RequestToChildResponse, dht.RequestToParent, dht.RequestToParentResponse](
		prefix+".dht",
		dht.NewActor(prefix+".dht", d, opts...),
		a.onDhtEvent,
	)
	if err != nil {
		return nil, err
	}
	a.transport = tp
	a.dht = dp
	return a, nil
}

func (a *Actor) Space() string {
	return a.space
}

func (a *Actor) Process() (ghost.WorkWasDone, error) {
	defer a.Guard.Enter()()

	work, errs := a.Self().ProcessWith(a.handle)

	tWork, err := a.transport.Process()
	errs = multierr.Append(errs, err)

	dWork, err := a.dht.Process()
	errs = multierr.Append(errs, err)

	return work || tWork || dWork, errs
}

func (a *Actor) handle(msg inflight) error {
	isRequest := msg.IsRequest()
	switch req := msg.Take().(type) {
	case TransportRequest:
		if !isRequest {
			return a.transport.Publish(req.Request)
		}
		_, err := a.transport.Request(req.Request, func(resp transport.RequestToChildResponse, err error) {
			a.respond(msg, TransportResponse{Response: resp}, err)
		})
		if err != nil {
			return msg.Respond(TransportResponse{}, err)
		}
		return nil
	case DhtRequest:
		if !isRequest {
			return a.dht.Publish(req.Request)
		}
		_, err := a.dht.Request(req.Request, func(resp dht.RequestToChildResponse, err error) {
			a.respond(msg, DhtResponse{Response: resp}, err)
		})
		if err != nil {
			return msg.Respond(DhtResponse{}, err)
		}
		return nil
	default:
		err := fmt.Errorf("gateway: unknown request %T", req)
		if isRequest {
			return msg.Respond(nil, err)
		}
		return err
	}
}

func (a *Actor) respond(msg inflight, resp RequestToChildResponse, err error) {
	if rerr := msg.Respond(resp, err); rerr != nil {
		log.Warn().Str("space", a.space).Err(rerr).Msg("gateway.Actor.respond")
	}
}

func (a *Actor) onTransportEvent(msg *ghost.Message[transport.RequestToParent, transport.RequestToParentResponse]) error {
	ev := msg.Take()
	switch e := ev.(type) {
	case transport.ConnectResult:
		a.connections[e.URI] = e.ConnectionID
	case transport.IncomingConnectionEstablished:
		a.connections[e.URI] = e.ConnectionID
	case transport.ConnectionClosed:
		delete(a.connections, e.URI)
	}
	return a.Self().Publish(TransportEvent{Event: ev})
}

func (a *Actor) onDhtEvent(msg *ghost.Message[dht.RequestToParent, dht.RequestToParentResponse]) error {
	return a.Self().Publish(DhtEvent{Event: msg.Take()})
}

// LookupPeer resolves a peer from local DHT records without a round trip.
func (a *Actor) LookupPeer(address string) (PeerConnection, bool) {
	p, ok := a.dht.Actor().Dht().Peer(address)
	if !ok || p.URI == "" {
		return PeerConnection{}, false
	}
	return PeerConnection{
		Address:      p.Address,
		URI:          p.URI,
		ConnectionID: a.connections[p.URI],
	}, true
}

func (a *Actor) ThisPeer() dht.PeerData {
	return a.dht.Actor().Dht().ThisPeer()
}

func (a *Actor) PeerList() []dht.PeerData {
	return a.dht.Actor().Dht().PeerList()
}

func (a *Actor) EntryAddressList() []string {
	return a.dht.Actor().Dht().EntryAddressList()
}

func (a *Actor) AspectsOf(address string) ([]dht.EntryAspect, bool) {
	return a.dht.Actor().Dht().AspectsOf(address)
}

// Connections lists connected URIs, sorted.
func (a *Actor) Connections() []string {
	out := make([]string, 0, len(a.connections))
	for uri := range a.connections {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Close shuts the transport and tears down both child channels. Requests
// still waiting on a child are answered with ghost.ErrChannelClosed.
func (a *Actor) Close() error {
	err := a.transport.Actor().Transport().Close()
	a.transport.Close()
	a.dht.Close()
	return err
}
