// Package gateway composes one Transport child and one DHT child under a
// single address space and routes a unified protocol between them and the
// owner.
package gateway

import (
	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/transport"
)

// RequestToChild targets exactly one child by its variant.
type RequestToChild interface {
	isRequestToChild()
}

type TransportRequest struct {
	Request transport.RequestToChild
}

type DhtRequest struct {
	Request dht.RequestToChild
}

func (TransportRequest) isRequestToChild() {}
func (DhtRequest) isRequestToChild()       {}

// RequestToChildResponse carries the same tag as the request it answers,
// including when the child failed.
type RequestToChildResponse interface {
	isRequestToChildResponse()
}

type TransportResponse struct {
	Response transport.RequestToChildResponse
}

type DhtResponse struct {
	Response dht.RequestToChildResponse
}

func (TransportResponse) isRequestToChildResponse() {}
func (DhtResponse) isRequestToChildResponse()       {}

// RequestToParent lifts a child event unchanged.
type RequestToParent interface {
	isRequestToParent()
}

type TransportEvent struct {
	Event transport.Event
}

type DhtEvent struct {
	Event dht.Event
}

func (TransportEvent) isRequestToParent() {}
func (DhtEvent) isRequestToParent()       {}

type RequestToParentResponse = ghost.Ack

// PeerConnection resolves a peer address to its URI and, when connected,
// the transport connection id.
type PeerConnection struct {
	Address      string
	URI          string
	ConnectionID string
}

func (p PeerConnection) Connected() bool {
	return p.ConnectionID != ""
}
