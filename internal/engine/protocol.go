package engine

import (
	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/ghost"
)

// ClientRequest is sent by the engine's owner. Each request gets exactly
// one terminal response.
type ClientRequest interface {
	isClientRequest()
}

// Bootstrap connects the gateway of Space (NetworkSpace when empty) to URI.
type Bootstrap struct {
	Space string
	URI   string
}

// JoinSpace creates a gateway for Space. Agent defaults to the node address.
type JoinSpace struct {
	Space string
	Agent string
}

type LeaveSpace struct {
	Space string
}

// PublishEntry holds Entry and gossips it to the space.
type PublishEntry struct {
	Space string
	Entry dht.EntryData
}

// HoldEntry stores Entry locally without gossip.
type HoldEntry struct {
	Space string
	Entry dht.EntryData
}

type DropEntry struct {
	Space   string
	Address string
}

type FetchEntry struct {
	Space   string
	Address string
}

type SendDirectMessage struct {
	Space   string
	To      string
	Content []byte
}

type PeerList struct {
	Space string
}

func (Bootstrap) isClientRequest()         {}
func (JoinSpace) isClientRequest()         {}
func (LeaveSpace) isClientRequest()        {}
func (PublishEntry) isClientRequest()      {}
func (HoldEntry) isClientRequest()         {}
func (DropEntry) isClientRequest()         {}
func (FetchEntry) isClientRequest()        {}
func (SendDirectMessage) isClientRequest() {}
func (PeerList) isClientRequest()          {}

type ClientResponse interface {
	isClientResponse()
}

type Bootstrapped struct {
	Space        string
	URI          string
	ConnectionID string
}

type Joined struct {
	Space string
	Agent string
	URI   string
}

type Left struct {
	Space string
}

type EntryPublished struct {
	Space   string
	Address string
}

type EntryHeld struct {
	Space   string
	Address string
}

type EntryDropped struct {
	Space   string
	Address string
}

type EntryFetched struct {
	Space string
	Entry dht.EntryData
	Found bool
}

type DirectMessageSent struct {
	Space string
	To    string
}

type Peers struct {
	Space string
	Peers []dht.PeerData
}

func (Bootstrapped) isClientResponse()      {}
func (Joined) isClientResponse()            {}
func (Left) isClientResponse()              {}
func (EntryPublished) isClientResponse()    {}
func (EntryHeld) isClientResponse()         {}
func (EntryDropped) isClientResponse()      {}
func (EntryFetched) isClientResponse()      {}
func (DirectMessageSent) isClientResponse() {}
func (Peers) isClientResponse()             {}

// ClientEvent is published to the owner.
type ClientEvent interface {
	isClientEvent()
}

type Connected struct {
	Space        string
	URI          string
	ConnectionID string
}

type Disconnected struct {
	Space        string
	URI          string
	ConnectionID string
}

type PeerHeld struct {
	Space string
	Peer  dht.PeerData
}

type PeerTimedOut struct {
	Space string
	Peer  string
}

// HandleStoreEntry asks the owner to persist an entry the space gossiped.
type HandleStoreEntry struct {
	Space string
	Entry dht.EntryData
}

// HandleDropEntry asks the owner to remove a pruned entry from storage.
type HandleDropEntry struct {
	Space   string
	Address string
}

type HandleSendDirectMessage struct {
	Space   string
	From    string
	To      string
	Content []byte
}

type ErrorOccurred struct {
	Space string
	Err   error
}

func (Connected) isClientEvent()               {}
func (Disconnected) isClientEvent()            {}
func (PeerHeld) isClientEvent()                {}
func (PeerTimedOut) isClientEvent()            {}
func (HandleStoreEntry) isClientEvent()        {}
func (HandleDropEntry) isClientEvent()         {}
func (HandleSendDirectMessage) isClientEvent() {}
func (ErrorOccurred) isClientEvent()           {}

// Client is the owner's handle on an Engine.
type Client = ghost.Parent[ClientRequest, ClientResponse, ClientEvent, ghost.Ack, *Engine]

// NewClient takes the engine's parent endpoint. A nil handler leaves events
// for Client.Drain.
func NewClient(e *Engine, handler ghost.Handler[ClientEvent, ghost.Ack]) (*Client, error) {
	return ghost.NewParent[ClientRequest, ClientResponse, ClientEvent, ghost.Ack]("client", e, handler)
}

func requestName(req ClientRequest) string {
	switch req.(type) {
	case Bootstrap:
		return "bootstrap"
	case JoinSpace:
		return "join_space"
	case LeaveSpace:
		return "leave_space"
	case PublishEntry:
		return "publish_entry"
	case HoldEntry:
		return "hold_entry"
	case DropEntry:
		return "drop_entry"
	case FetchEntry:
		return "fetch_entry"
	case SendDirectMessage:
		return "send_direct_message"
	case PeerList:
		return "peer_list"
	default:
		return "unknown"
	}
}
