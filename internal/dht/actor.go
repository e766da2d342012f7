package dht

import (
	"fmt"

	"github.com/danmuck/ghostnet/internal/ghost"
	"go.uber.org/multierr"
)

type inflight = *ghost.Message[RequestToChild, RequestToChildResponse]

// Actor wraps a Dht as a ghost child. Queries are answered synchronously;
// FetchEntry requests are answered from the matching FetchEntryResponse and
// every other event is published upward.
type Actor struct {
	ghost.Hosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse]

	dht     Dht
	fetches map[string]inflight
}

func NewActor(prefix string, d Dht, opts ...ghost.EndpointOption) *Actor {
	return &Actor{
		Hosted:  ghost.NewHosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse](prefix, opts...),
		dht:     d,
		fetches: make(map[string]inflight),
	}
}

// Dht gives synchronous access to the wrapped collaborator.
func (a *Actor) Dht() Dht {
	return a.dht
}

func (a *Actor) Process() (ghost.WorkWasDone, error) {
	defer a.Guard.Enter()()

	work, errs := a.Self().ProcessWith(a.handle)
	dWork, events, err := a.dht.Process()
	errs = multierr.Append(errs, err)
	for _, ev := range events {
		errs = multierr.Append(errs, a.route(ev))
	}
	return work || dWork, errs
}

func (a *Actor) handle(msg inflight) error {
	id, isRequest := msg.RequestID()
	payload := msg.Take()
	if !isRequest {
		cmd, ok := payload.(Command)
		if !ok {
			return fmt.Errorf("%w: query %T sent as event", ErrInvalidCommand, payload)
		}
		return a.dht.Post(cmd)
	}
	switch req := payload.(type) {
	case PeerListRequest:
		return msg.Respond(PeerListResponse{Peers: a.dht.PeerList()}, nil)
	case PeerRequest:
		p, ok := a.dht.Peer(req.Address)
		return msg.Respond(PeerResponse{Peer: p, Found: ok}, nil)
	case ThisPeerRequest:
		return msg.Respond(ThisPeerResponse{Peer: a.dht.ThisPeer()}, nil)
	case EntryAddressListRequest:
		return msg.Respond(EntryAddressListResponse{Addresses: a.dht.EntryAddressList()}, nil)
	case AspectsOfRequest:
		aspects, ok := a.dht.AspectsOf(req.Address)
		return msg.Respond(AspectsOfResponse{Aspects: aspects, Found: ok}, nil)
	case FetchEntry:
		if req.MsgID == "" {
			req.MsgID = id.String()
		}
		if _, dup := a.fetches[req.MsgID]; dup {
			return msg.Respond(nil, fmt.Errorf("%w: fetch %s already in flight", ErrInvalidCommand, req.MsgID))
		}
		if err := a.dht.Post(req); err != nil {
			return msg.Respond(nil, err)
		}
		a.fetches[req.MsgID] = msg
		return nil
	case Command:
		if err := a.dht.Post(req); err != nil {
			return msg.Respond(nil, err)
		}
		return msg.Respond(CommandAccepted{}, nil)
	default:
		return msg.Respond(nil, fmt.Errorf("%w: %T", ErrInvalidCommand, req))
	}
}

func (a *Actor) route(ev Event) error {
	if fetched, ok := ev.(FetchEntryResponse); ok {
		if msg, pending := a.fetches[fetched.MsgID]; pending {
			delete(a.fetches, fetched.MsgID)
			return msg.Respond(FetchEntryResult{Entry: fetched.Entry, Found: fetched.Found}, nil)
		}
	}
	return a.Self().Publish(ev)
}
