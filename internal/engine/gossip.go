package engine

import (
	"errors"
	"fmt"

	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/gateway"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/observability"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/danmuck/ghostnet/internal/wire"
	"github.com/rs/zerolog/log"
)

func (e *Engine) onGatewayEvent(sp *space, msg *ghost.Message[gateway.RequestToParent, gateway.RequestToParentResponse]) error {
	switch ev := msg.Take().(type) {
	case gateway.TransportEvent:
		observability.RecordGatewayEvent(e.cfg.Name, sp.key, fmt.Sprintf("%T", ev.Event))
		e.onTransportEvent(sp, ev.Event)
	case gateway.DhtEvent:
		observability.RecordGatewayEvent(e.cfg.Name, sp.key, fmt.Sprintf("%T", ev.Event))
		e.onDhtEvent(sp, ev.Event)
	}
	return nil
}

func (e *Engine) onTransportEvent(sp *space, ev transport.Event) {
	switch t := ev.(type) {
	case transport.ConnectResult:
		e.emit(Connected{Space: sp.key, URI: t.URI, ConnectionID: t.ConnectionID})
		e.announce(sp, t.URI)
	case transport.IncomingConnectionEstablished:
		e.emit(Connected{Space: sp.key, URI: t.URI, ConnectionID: t.ConnectionID})
	case transport.ConnectionClosed:
		e.emit(Disconnected{Space: sp.key, URI: t.URI, ConnectionID: t.ConnectionID})
	case transport.ReceivedData:
		e.receive(sp, t)
	case transport.ErrorOccurred:
		e.emit(ErrorOccurred{Space: sp.key, Err: t})
	}
}

// announce sends this gateway's peer record over a fresh connection.
func (e *Engine) announce(sp *space, uri string) {
	self := sp.gw.Actor().ThisPeer()
	bundle := dht.EncodeBundle(dht.Bundle{Peers: []dht.PeerData{self}})
	e.send(sp, uri, wire.KindGossip, "", bundle, func(err error) {
		if err != nil {
			log.Debug().Str("space", sp.key).Str("uri", uri).Err(err).Msg("engine.Engine.announce")
		}
	})
}

func (e *Engine) receive(sp *space, data transport.ReceivedData) {
	m, err := wire.Open(data.Payload, e.identity)
	if err != nil {
		e.emit(ErrorOccurred{Space: sp.key, Err: fmt.Errorf("engine: frame from %s: %w", data.URI, err)})
		return
	}
	target, ok := e.spaces[m.Space]
	if !ok {
		e.emit(ErrorOccurred{Space: sp.key, Err: fmt.Errorf("%w: %s from %s", ErrUnknownSpace, m.Space, data.URI)})
		return
	}
	switch m.Kind {
	case wire.KindGossip:
		if err := target.gw.Publish(gateway.DhtRequest{Request: dht.HandleGossip{Bundle: m.Body}}); err != nil {
			e.emit(ErrorOccurred{Space: target.key, Err: err})
		}
	case wire.KindDirect:
		if m.To != target.agent {
			e.emit(ErrorOccurred{Space: target.key, Err: fmt.Errorf("%w: direct message for %s", ErrPeerUnknown, m.To)})
			return
		}
		e.emit(HandleSendDirectMessage{Space: target.key, From: m.From, To: m.To, Content: m.Body})
	}
}

func (e *Engine) onDhtEvent(sp *space, ev dht.Event) {
	switch d := ev.(type) {
	case dht.GossipTo:
		e.gossip(sp, d.Peers, d.Bundle, true)
	case dht.GossipUnreliablyTo:
		e.gossip(sp, d.Peers, d.Bundle, false)
	case dht.HoldPeerRequested:
		e.acceptPeer(sp, d.Peer)
	case dht.PeerTimedOut:
		delete(sp.held, d.Peer)
		e.emit(PeerTimedOut{Space: sp.key, Peer: d.Peer})
	case dht.HoldEntryRequested:
		if err := sp.gw.Publish(gateway.DhtRequest{Request: dht.HoldEntry{Entry: d.Entry}}); err != nil {
			e.emit(ErrorOccurred{Space: sp.key, Err: err})
			return
		}
		e.emit(HandleStoreEntry{Space: sp.key, Entry: d.Entry})
	case dht.EntryPruned:
		e.emit(HandleDropEntry{Space: sp.key, Address: d.Address})
	case dht.FetchEntryResponse:
		log.Debug().Str("space", sp.key).Str("msg_id", d.MsgID).Msg("engine.Engine.fetch_unmatched")
	}
}

// acceptPeer holds a gossiped peer. Refreshes of an already held peer are
// applied silently; a new network peer is also offered every joined space.
func (e *Engine) acceptPeer(sp *space, peer dht.PeerData) {
	if err := sp.gw.Publish(gateway.DhtRequest{Request: dht.HoldPeer{Peer: peer}}); err != nil {
		e.emit(ErrorOccurred{Space: sp.key, Err: err})
		return
	}
	if _, known := sp.held[peer.Address]; known {
		return
	}
	sp.held[peer.Address] = struct{}{}
	e.emit(PeerHeld{Space: sp.key, Peer: peer})
	if sp.key != NetworkSpace {
		return
	}
	for _, key := range e.order {
		if key == NetworkSpace {
			continue
		}
		e.announceSpace(e.spaces[key], peer)
	}
}

func (e *Engine) gossip(sp *space, peers []string, bundle []byte, reliable bool) {
	for _, address := range peers {
		peer, ok := sp.gw.Actor().LookupPeer(address)
		if !ok {
			log.Debug().Str("space", sp.key).Str("peer", address).Msg("engine.Engine.gossip_unknown_peer")
			continue
		}
		e.send(sp, peer.URI, wire.KindGossip, "", bundle, func(err error) {
			if err == nil {
				return
			}
			if reliable && !errors.Is(err, ghost.ErrChannelClosed) {
				e.emit(ErrorOccurred{Space: sp.key, Err: fmt.Errorf("engine: gossip to %s: %w", address, err)})
				return
			}
			log.Debug().Str("space", sp.key).Str("peer", address).Err(err).Msg("engine.Engine.gossip_dropped")
		})
	}
}

// send seals a frame signed by this node and hands it to the space's
// transport. done runs once with the transport outcome.
func (e *Engine) send(sp *space, uri string, kind wire.Kind, to string, body []byte, done func(error)) {
	e.msgSeq++
	frame, err := wire.Seal(wire.Message{
		Kind:  kind,
		ID:    e.msgSeq,
		Space: sp.key,
		Node:  e.Address(),
		From:  sp.agent,
		To:    to,
		Body:  body,
	}, e.identity)
	if err != nil {
		done(err)
		return
	}
	_, err = sp.gw.Request(gateway.TransportRequest{Request: transport.SendRequest{URI: uri, Payload: frame}}, func(_ gateway.RequestToChildResponse, err error) {
		done(err)
	})
	if err != nil {
		done(err)
	}
}
