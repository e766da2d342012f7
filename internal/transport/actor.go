package transport

import (
	"fmt"

	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

type inflight = *ghost.Message[RequestToChild, RequestToChildResponse]

type pendingSend struct {
	msg inflight
	uri string
}

// Actor wraps a Transport as a ghost child. Connect requests resolve from
// the matching ConnectResult or ErrorOccurred; send requests resolve when
// the transport applied them without reporting an error.
type Actor struct {
	ghost.Hosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse]

	transport Transport
	connects  map[string]inflight
	sendOrder []string
	sends     map[string]pendingSend
}

func NewActor(prefix string, t Transport, opts ...ghost.EndpointOption) *Actor {
	return &Actor{
		Hosted:    ghost.NewHosted[RequestToChild, RequestToChildResponse, RequestToParent, RequestToParentResponse](prefix, opts...),
		transport: t,
		connects:  make(map[string]inflight),
		sendOrder: make([]string, 0),
		sends:     make(map[string]pendingSend),
	}
}

// Transport gives synchronous access to the wrapped collaborator.
func (a *Actor) Transport() Transport {
	return a.transport
}

func (a *Actor) Process() (ghost.WorkWasDone, error) {
	defer a.Guard.Enter()()

	work, errs := a.Self().ProcessWith(a.handle)

	flushed := a.sendOrder
	a.sendOrder = make([]string, 0)

	tWork, events, err := a.transport.Process()
	errs = multierr.Append(errs, err)
	for _, ev := range events {
		errs = multierr.Append(errs, a.route(ev))
	}

	for _, id := range flushed {
		send, ok := a.sends[id]
		if !ok {
			continue
		}
		delete(a.sends, id)
		errs = multierr.Append(errs, send.msg.Respond(SendResponse{URI: send.uri}, nil))
	}
	return work || tWork, errs
}

func (a *Actor) handle(msg inflight) error {
	id, isRequest := msg.RequestID()
	if !isRequest {
		msg.Take()
		return fmt.Errorf("%w: transport commands must be requests", ghost.ErrNotARequest)
	}
	switch req := msg.Take().(type) {
	case BindRequest:
		bound, err := a.transport.Bind(req.URI)
		if err != nil {
			return msg.Respond(nil, err)
		}
		return msg.Respond(BindResponse{BoundURI: bound}, nil)
	case ConnectRequest:
		if err := a.transport.Connect(req.URI, id.String()); err != nil {
			return msg.Respond(nil, err)
		}
		a.connects[id.String()] = msg
		return nil
	case SendRequest:
		if err := a.transport.Send(id.String(), req.URI, req.Payload); err != nil {
			return msg.Respond(nil, err)
		}
		a.sendOrder = append(a.sendOrder, id.String())
		a.sends[id.String()] = pendingSend{msg: msg, uri: req.URI}
		return nil
	default:
		return msg.Respond(nil, fmt.Errorf("%w: %T", ErrUnknownCommand, req))
	}
}

func (a *Actor) route(ev Event) error {
	switch e := ev.(type) {
	case ConnectResult:
		if msg, ok := a.connects[e.RequestID]; ok && e.RequestID != "" {
			delete(a.connects, e.RequestID)
			if err := msg.Respond(ConnectResponse{ConnectionID: e.ConnectionID, URI: e.URI}, nil); err != nil {
				return err
			}
		}
	case ErrorOccurred:
		if e.RequestID != "" {
			if msg, ok := a.connects[e.RequestID]; ok {
				delete(a.connects, e.RequestID)
				return msg.Respond(nil, e)
			}
			if send, ok := a.sends[e.RequestID]; ok {
				delete(a.sends, e.RequestID)
				return send.msg.Respond(nil, e)
			}
		}
		log.Debug().Str("uri", e.URI).Err(e.Err).Msg("transport.Actor.error")
	}
	return a.Self().Publish(ev)
}
