package dht

import "github.com/danmuck/ghostnet/internal/ghost"

// RequestToChild is sent by the owner of a dht Actor. Every Command is also
// a request; the remaining variants are read-only queries.
type RequestToChild interface {
	isRequestToChild()
}

func (HandleGossip) isRequestToChild()   {}
func (FetchEntry) isRequestToChild()     {}
func (HoldPeer) isRequestToChild()       {}
func (HoldEntry) isRequestToChild()      {}
func (BroadcastEntry) isRequestToChild() {}
func (DropEntry) isRequestToChild()      {}

type PeerListRequest struct{}

type PeerRequest struct {
	Address string
}

type ThisPeerRequest struct{}

type EntryAddressListRequest struct{}

type AspectsOfRequest struct {
	Address string
}

func (PeerListRequest) isRequestToChild()         {}
func (PeerRequest) isRequestToChild()             {}
func (ThisPeerRequest) isRequestToChild()         {}
func (EntryAddressListRequest) isRequestToChild() {}
func (AspectsOfRequest) isRequestToChild()        {}

// RequestToChildResponse answers a RequestToChild.
type RequestToChildResponse interface {
	isRequestToChildResponse()
}

// CommandAccepted answers every command except FetchEntry once it is queued.
type CommandAccepted struct{}

type FetchEntryResult struct {
	Entry EntryData
	Found bool
}

type PeerListResponse struct {
	Peers []PeerData
}

type PeerResponse struct {
	Peer  PeerData
	Found bool
}

type ThisPeerResponse struct {
	Peer PeerData
}

type EntryAddressListResponse struct {
	Addresses []string
}

type AspectsOfResponse struct {
	Aspects []EntryAspect
	Found   bool
}

func (CommandAccepted) isRequestToChildResponse()          {}
func (FetchEntryResult) isRequestToChildResponse()         {}
func (PeerListResponse) isRequestToChildResponse()         {}
func (PeerResponse) isRequestToChildResponse()             {}
func (ThisPeerResponse) isRequestToChildResponse()         {}
func (EntryAddressListResponse) isRequestToChildResponse() {}
func (AspectsOfResponse) isRequestToChildResponse()        {}

type (
	RequestToParent         = Event
	RequestToParentResponse = ghost.Ack
)

// ParentEndpoint is the owner's side of the channel to a dht Actor.
type ParentEndpoint = ghost.Endpoint[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse]
