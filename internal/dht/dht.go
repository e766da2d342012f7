package dht

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCommand  = errors.New("dht: invalid command")
	ErrMalformedBundle = errors.New("dht: malformed gossip bundle")
)

// Command is posted by the owner and applied on the next Process.
type Command interface {
	isCommand()
}

type HandleGossip struct {
	Bundle []byte
}

// FetchEntry is answered exactly once per MsgID with a FetchEntryResponse.
type FetchEntry struct {
	MsgID   string
	Address string
}

type HoldPeer struct {
	Peer PeerData
}

type HoldEntry struct {
	Entry EntryData
}

type BroadcastEntry struct {
	Entry EntryData
}

type DropEntry struct {
	Address string
}

func (HandleGossip) isCommand()   {}
func (FetchEntry) isCommand()     {}
func (HoldPeer) isCommand()       {}
func (HoldEntry) isCommand()      {}
func (BroadcastEntry) isCommand() {}
func (DropEntry) isCommand()      {}

// Event is reported by Process.
type Event interface {
	isEvent()
}

// GossipTo asks the owner to deliver Bundle reliably to every peer address.
type GossipTo struct {
	Peers  []string
	Bundle []byte
}

// GossipUnreliablyTo is GossipTo with best-effort delivery.
type GossipUnreliablyTo struct {
	Peers  []string
	Bundle []byte
}

type HoldPeerRequested struct {
	Peer PeerData
}

type PeerTimedOut struct {
	Peer string
}

type HoldEntryRequested struct {
	Entry EntryData
}

type FetchEntryResponse struct {
	MsgID string
	Entry EntryData
	Found bool
}

type EntryPruned struct {
	Address string
}

func (GossipTo) isEvent()           {}
func (GossipUnreliablyTo) isEvent() {}
func (HoldPeerRequested) isEvent()  {}
func (PeerTimedOut) isEvent()       {}
func (HoldEntryRequested) isEvent() {}
func (FetchEntryResponse) isEvent() {}
func (EntryPruned) isEvent()        {}

// Dht maintains peer records and entry holdings for one gateway.
type Dht interface {
	PeerList() []PeerData
	Peer(address string) (PeerData, bool)
	ThisPeer() PeerData
	EntryAddressList() []string
	// AspectsOf returns false when the entry is not held.
	AspectsOf(address string) ([]EntryAspect, bool)
	Post(cmd Command) error
	Process() (bool, []Event, error)
}

// Config carries the liveness and gossip policy of a Dht.
type Config struct {
	ThisPeer         PeerData
	TimeoutThreshold time.Duration
	GossipInterval   time.Duration
	// EntryTTL prunes entries whose newest aspect is older; zero disables.
	EntryTTL      time.Duration
	SeenCacheSize int
	Now           func() time.Time
}

const (
	DefaultTimeoutThreshold = 30 * time.Second
	DefaultGossipInterval   = 5 * time.Second
	DefaultSeenCacheSize    = 1024
)

func DefaultConfig(this PeerData) Config {
	return Config{
		ThisPeer:         this,
		TimeoutThreshold: DefaultTimeoutThreshold,
		GossipInterval:   DefaultGossipInterval,
		SeenCacheSize:    DefaultSeenCacheSize,
		Now:              time.Now,
	}
}

// ValidateCommand rejects commands missing their identifying fields.
func ValidateCommand(cmd Command) error {
	switch c := cmd.(type) {
	case HandleGossip:
		if len(c.Bundle) == 0 {
			return fmt.Errorf("%w: empty gossip bundle", ErrInvalidCommand)
		}
	case FetchEntry:
		if c.MsgID == "" || c.Address == "" {
			return fmt.Errorf("%w: fetch requires msg id and address", ErrInvalidCommand)
		}
	case HoldPeer:
		if c.Peer.Address == "" {
			return fmt.Errorf("%w: peer address is required", ErrInvalidCommand)
		}
	case HoldEntry:
		if c.Entry.Address == "" {
			return fmt.Errorf("%w: entry address is required", ErrInvalidCommand)
		}
	case BroadcastEntry:
		if c.Entry.Address == "" {
			return fmt.Errorf("%w: entry address is required", ErrInvalidCommand)
		}
	case DropEntry:
		if c.Address == "" {
			return fmt.Errorf("%w: entry address is required", ErrInvalidCommand)
		}
	case nil:
		return fmt.Errorf("%w: nil command", ErrInvalidCommand)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidCommand, cmd)
	}
	return nil
}
