package ghost

import (
	"time"

	"go.uber.org/multierr"
)

// Handler consumes one message drained from an Endpoint.
type Handler[Req, Resp any] func(msg *Message[Req, Resp]) error

type endpointConfig struct {
	now func() time.Time
}

// EndpointOption configures both endpoints of a channel.
type EndpointOption func(*endpointConfig)

// WithClock replaces time.Now for request deadlines.
func WithClock(now func() time.Time) EndpointOption {
	return func(cfg *endpointConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Endpoint is one side of a bidirectional typed channel.
//
// ToOther/ToOtherResp are what this side sends and what it expects back;
// FromOther/FromOtherResp are what the remote side sends and what this side
// answers with.
type Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp any] struct {
	prefix  string
	out     *fifo[frame[ToOther, FromOtherResp]]
	in      *fifo[frame[FromOther, ToOtherResp]]
	link    *link
	pending *tracker[ToOtherResp]
	drained []*Message[FromOther, FromOtherResp]
	now     func() time.Time
}

func newEndpoint[ToOther, ToOtherResp, FromOther, FromOtherResp any](
	prefix string,
	out *fifo[frame[ToOther, FromOtherResp]],
	in *fifo[frame[FromOther, ToOtherResp]],
	l *link,
	cfg endpointConfig,
) *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp] {
	return &Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]{
		prefix:  prefix,
		out:     out,
		in:      in,
		link:    l,
		pending: newTracker[ToOtherResp](prefix),
		drained: make([]*Message[FromOther, FromOtherResp], 0),
		now:     cfg.now,
	}
}

func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Prefix() string {
	return e.prefix
}

// Publish enqueues a one-way event for the remote side.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Publish(payload ToOther) error {
	if e.link.closed {
		return ErrChannelClosed
	}
	e.out.push(frame[ToOther, FromOtherResp]{kind: frameEvent, payload: payload})
	return nil
}

// Request enqueues a request; cb runs exactly once from a later Process call.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Request(payload ToOther, cb Callback[ToOtherResp]) (RequestID, error) {
	return e.RequestWithTimeout(payload, 0, cb)
}

// RequestWithTimeout is Request with a deadline. A zero timeout never expires.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) RequestWithTimeout(
	payload ToOther,
	timeout time.Duration,
	cb Callback[ToOtherResp],
) (RequestID, error) {
	if e.link.closed {
		return "", ErrChannelClosed
	}
	id, err := e.pending.register(cb, timeout, e.now())
	if err != nil {
		return "", err
	}
	e.out.push(frame[ToOther, FromOtherResp]{kind: frameRequest, id: id, payload: payload})
	return id, nil
}

// Process drains frames from the remote side. Responses resolve pending
// requests; events and requests are kept for Drain.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Process() (WorkWasDone, error) {
	return e.process(nil)
}

// ProcessWith is Process with events and requests handed to h in arrival
// order instead of being kept for Drain.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) ProcessWith(h Handler[FromOther, FromOtherResp]) (WorkWasDone, error) {
	return e.process(h)
}

func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) process(h Handler[FromOther, FromOtherResp]) (WorkWasDone, error) {
	if e.link.closed {
		dropped := len(e.in.popAll())
		failed := e.pending.failAll(ErrChannelClosed)
		return dropped > 0 || failed > 0, nil
	}

	var errs error
	work := false
	for _, f := range e.in.popAll() {
		work = true
		var msg *Message[FromOther, FromOtherResp]
		switch f.kind {
		case frameResponse:
			if err := e.pending.resolve(f.id, f.resp, f.err); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		case frameRequest:
			msg = newRequest(f.id, f.payload, e.replier(f.id))
		default:
			msg = newEvent[FromOther, FromOtherResp](f.payload)
		}
		if h == nil {
			e.drained = append(e.drained, msg)
			continue
		}
		if err := h(msg); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if e.pending.expire(e.now()) > 0 {
		work = true
	}
	return work, errs
}

func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) replier(id RequestID) func(FromOtherResp, error) error {
	return func(resp FromOtherResp, err error) error {
		if e.link.closed {
			return ErrChannelClosed
		}
		e.out.push(frame[ToOther, FromOtherResp]{kind: frameResponse, id: id, resp: resp, err: err})
		return nil
	}
}

// Drain returns the messages collected by Process, oldest first.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Drain() []*Message[FromOther, FromOtherResp] {
	out := e.drained
	e.drained = make([]*Message[FromOther, FromOtherResp], 0)
	return out
}

// Pending reports the number of unresolved requests issued by this side.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Pending() int {
	return e.pending.len()
}

// IsPending reports whether id is still awaiting a response.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) IsPending(id RequestID) bool {
	return e.pending.has(id)
}

// Queued reports frames waiting to be drained by this side.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Queued() int {
	return e.in.len()
}

// Close tears the channel down for both sides. Pending continuations on this
// side run now with ErrChannelClosed; the remote side fails its own on its
// next Process.
func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Close() {
	e.link.closed = true
	e.in.popAll()
	e.pending.failAll(ErrChannelClosed)
}

func (e *Endpoint[ToOther, ToOtherResp, FromOther, FromOtherResp]) Closed() bool {
	return e.link.closed
}
