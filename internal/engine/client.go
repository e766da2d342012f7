package engine

import (
	"fmt"
	"strings"

	"github.com/danmuck/ghostnet/internal/crypto"
	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/gateway"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/observability"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/danmuck/ghostnet/internal/wire"
	"github.com/rs/zerolog/log"
)

type clientMessage = *ghost.Message[ClientRequest, ClientResponse]

// reply delivers the single terminal outcome of a client message. Failures
// of one-way client messages are published as ErrorOccurred.
type reply func(resp ClientResponse, err error)

func (e *Engine) replier(msg clientMessage, name, key string) reply {
	return func(resp ClientResponse, err error) {
		observability.RecordClientRequest(e.cfg.Name, name, err)
		if !msg.IsRequest() {
			if err != nil {
				e.emit(ErrorOccurred{Space: key, Err: err})
			}
			return
		}
		if rerr := msg.Respond(resp, err); rerr != nil {
			log.Warn().Str("space", key).Err(rerr).Msg("engine.Engine.reply")
		}
	}
}

func (e *Engine) handleClient(msg clientMessage) error {
	req := msg.Take()
	name := requestName(req)
	switch r := req.(type) {
	case Bootstrap:
		key := spaceKey(r.Space)
		e.bootstrap(key, r, e.replier(msg, name, key))
	case JoinSpace:
		done := e.replier(msg, name, r.Space)
		sp, err := e.joinSpace(r.Space, r.Agent)
		if err != nil {
			done(nil, err)
			return nil
		}
		done(Joined{Space: sp.key, Agent: sp.agent, URI: sp.uri}, nil)
	case LeaveSpace:
		done := e.replier(msg, name, r.Space)
		if r.Space == NetworkSpace {
			done(nil, fmt.Errorf("%w: %s", ErrReservedSpace, r.Space))
			return nil
		}
		if err := e.removeSpace(r.Space); err != nil {
			done(nil, err)
			return nil
		}
		done(Left{Space: r.Space}, nil)
	case PublishEntry:
		key := spaceKey(r.Space)
		e.publishEntry(key, r.Entry, e.replier(msg, name, key))
	case HoldEntry:
		key := spaceKey(r.Space)
		e.holdEntry(key, r.Entry, e.replier(msg, name, key))
	case DropEntry:
		key := spaceKey(r.Space)
		e.dropEntry(key, r.Address, e.replier(msg, name, key))
	case FetchEntry:
		key := spaceKey(r.Space)
		e.fetchEntry(key, r.Address, e.replier(msg, name, key))
	case SendDirectMessage:
		key := spaceKey(r.Space)
		e.sendDirect(key, r, e.replier(msg, name, key))
	case PeerList:
		key := spaceKey(r.Space)
		done := e.replier(msg, name, key)
		sp, err := e.lookup(key)
		if err != nil {
			done(nil, err)
			return nil
		}
		done(Peers{Space: key, Peers: sp.gw.Actor().PeerList()}, nil)
	default:
		e.replier(msg, name, "")(nil, fmt.Errorf("engine: unknown client request %T", req))
	}
	return nil
}

func spaceKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NetworkSpace
	}
	return s
}

func (e *Engine) lookup(key string) (*space, error) {
	sp, ok := e.spaces[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpace, key)
	}
	return sp, nil
}

func (e *Engine) bootstrap(key string, r Bootstrap, done reply) {
	sp, err := e.lookup(key)
	if err != nil {
		done(nil, err)
		return
	}
	_, err = sp.gw.Request(gateway.TransportRequest{Request: transport.ConnectRequest{URI: r.URI}}, func(resp gateway.RequestToChildResponse, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		connected := resp.(gateway.TransportResponse).Response.(transport.ConnectResponse)
		done(Bootstrapped{Space: key, URI: connected.URI, ConnectionID: connected.ConnectionID}, nil)
	})
	if err != nil {
		done(nil, err)
	}
}

// joinSpace adds a gateway for key and connects it to the space URI of
// every node the network gateway already holds.
func (e *Engine) joinSpace(key, agent string) (*space, error) {
	if err := validateSpace(key); err != nil {
		return nil, err
	}
	if _, ok := e.spaces[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSpaceExists, key)
	}
	if strings.TrimSpace(agent) == "" {
		agent = e.Address()
	}
	sp, err := e.addSpace(key, agent)
	if err != nil {
		return nil, err
	}
	for _, peer := range e.spaces[NetworkSpace].gw.Actor().PeerList() {
		e.announceSpace(sp, peer)
	}
	log.Info().Str("space", key).Str("agent", agent).Msg("engine.Engine.join_space")
	return sp, nil
}

// announceSpace connects sp to the matching space of a network peer. The
// peer may not have joined the space; failures are expected.
func (e *Engine) announceSpace(sp *space, peer dht.PeerData) {
	e.connect(sp, SpaceBindURI(peer.URI, sp.key), func(err error) {
		log.Debug().Str("space", sp.key).Str("peer", peer.Address).Err(err).Msg("engine.Engine.announce_space")
	})
}

func (e *Engine) connect(sp *space, uri string, onErr func(error)) {
	if uri == sp.uri {
		return
	}
	for _, connected := range sp.gw.Actor().Connections() {
		if connected == uri {
			return
		}
	}
	_, err := sp.gw.Request(gateway.TransportRequest{Request: transport.ConnectRequest{URI: uri}}, func(_ gateway.RequestToChildResponse, err error) {
		if err != nil {
			onErr(err)
		}
	})
	if err != nil {
		onErr(err)
	}
}

// prepareEntry fills missing aspect addresses and publish times.
func (e *Engine) prepareEntry(entry dht.EntryData) (dht.EntryData, error) {
	if strings.TrimSpace(entry.Address) == "" {
		return dht.EntryData{}, fmt.Errorf("%w: address is required", ErrInvalidEntry)
	}
	if len(entry.Aspects) == 0 {
		return dht.EntryData{}, fmt.Errorf("%w: %s has no aspects", ErrInvalidEntry, entry.Address)
	}
	out := entry.Clone()
	now := dht.Millis(e.cfg.Now())
	for i := range out.Aspects {
		if out.Aspects[i].Address == "" {
			out.Aspects[i].Address = crypto.HashAddress(out.Aspects[i].Content)
		}
		if out.Aspects[i].PublishTS == 0 {
			out.Aspects[i].PublishTS = now
		}
	}
	return out, nil
}

func (e *Engine) dhtRequest(key string, req dht.RequestToChild, done reply, ok func(dht.RequestToChildResponse) ClientResponse) {
	sp, err := e.lookup(key)
	if err != nil {
		done(nil, err)
		return
	}
	_, err = sp.gw.Request(gateway.DhtRequest{Request: req}, func(resp gateway.RequestToChildResponse, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(ok(resp.(gateway.DhtResponse).Response), nil)
	})
	if err != nil {
		done(nil, err)
	}
}

func (e *Engine) publishEntry(key string, entry dht.EntryData, done reply) {
	prepared, err := e.prepareEntry(entry)
	if err != nil {
		done(nil, err)
		return
	}
	e.dhtRequest(key, dht.BroadcastEntry{Entry: prepared}, done, func(dht.RequestToChildResponse) ClientResponse {
		return EntryPublished{Space: key, Address: prepared.Address}
	})
}

func (e *Engine) holdEntry(key string, entry dht.EntryData, done reply) {
	prepared, err := e.prepareEntry(entry)
	if err != nil {
		done(nil, err)
		return
	}
	e.dhtRequest(key, dht.HoldEntry{Entry: prepared}, done, func(dht.RequestToChildResponse) ClientResponse {
		return EntryHeld{Space: key, Address: prepared.Address}
	})
}

func (e *Engine) dropEntry(key, address string, done reply) {
	e.dhtRequest(key, dht.DropEntry{Address: address}, done, func(dht.RequestToChildResponse) ClientResponse {
		return EntryDropped{Space: key, Address: address}
	})
}

func (e *Engine) fetchEntry(key, address string, done reply) {
	e.dhtRequest(key, dht.FetchEntry{Address: address}, done, func(resp dht.RequestToChildResponse) ClientResponse {
		fetched := resp.(dht.FetchEntryResult)
		return EntryFetched{Space: key, Entry: fetched.Entry, Found: fetched.Found}
	})
}

func (e *Engine) sendDirect(key string, r SendDirectMessage, done reply) {
	sp, err := e.lookup(key)
	if err != nil {
		done(nil, err)
		return
	}
	peer, ok := sp.gw.Actor().LookupPeer(r.To)
	if !ok {
		done(nil, fmt.Errorf("%w: %s in %s", ErrPeerUnknown, r.To, key))
		return
	}
	e.send(sp, peer.URI, wire.KindDirect, r.To, r.Content, func(err error) {
		if err != nil {
			done(nil, err)
			return
		}
		done(DirectMessageSent{Space: key, To: r.To}, nil)
	})
}
