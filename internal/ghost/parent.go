package ghost

import (
	"time"

	"go.uber.org/multierr"
)

// Parent owns one child actor plus the parent side of the channel to it.
// Child messages are handed to handler in arrival order during Process.
type Parent[P2C, P2CR, C2P, C2PR any, A Actor[P2C, P2CR, C2P, C2PR]] struct {
	prefix   string
	actor    *Detach[A]
	endpoint *Endpoint[P2C, P2CR, C2P, C2PR]
	handler  Handler[C2P, C2PR]
	guard    ProcessGuard
}

// NewParent takes the actor's parent endpoint. A nil handler leaves child
// messages for Drain.
func NewParent[P2C, P2CR, C2P, C2PR any, A Actor[P2C, P2CR, C2P, C2PR]](
	prefix string,
	actor A,
	handler Handler[C2P, C2PR],
) (*Parent[P2C, P2CR, C2P, C2PR, A], error) {
	ep, ok := actor.TakeParentEndpoint()
	if !ok {
		return nil, ErrEndpointTaken
	}
	return &Parent[P2C, P2CR, C2P, C2PR, A]{
		prefix:   prefix,
		actor:    NewDetach(prefix+".actor", actor),
		endpoint: ep,
		handler:  handler,
		guard:    NewProcessGuard(prefix),
	}, nil
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Publish(payload P2C) error {
	return p.endpoint.Publish(payload)
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Request(payload P2C, cb Callback[P2CR]) (RequestID, error) {
	return p.endpoint.Request(payload, cb)
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) RequestWithTimeout(payload P2C, timeout time.Duration, cb Callback[P2CR]) (RequestID, error) {
	return p.endpoint.RequestWithTimeout(payload, timeout, cb)
}

// Process runs the child with the child detached, then drains what the child
// sent back. Work is reported if either side advanced.
func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Process() (WorkWasDone, error) {
	defer p.guard.Enter()()

	childWork, childErr := DetachCall(p.actor, func(a A) (WorkWasDone, error) {
		return a.Process()
	})
	var epWork WorkWasDone
	var epErr error
	if p.handler != nil {
		epWork, epErr = p.endpoint.ProcessWith(p.handler)
	} else {
		epWork, epErr = p.endpoint.Process()
	}
	return childWork || epWork, multierr.Append(childErr, epErr)
}

// Drain returns child messages when no handler is registered.
func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Drain() []*Message[C2P, C2PR] {
	return p.endpoint.Drain()
}

// Actor gives the owner synchronous access to the child between Process
// calls. Calling it from inside the child's own processing faults.
func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Actor() A {
	return p.actor.Get()
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Attached() bool {
	return p.actor.Attached()
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Pending() int {
	return p.endpoint.Pending()
}

func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Prefix() string {
	return p.prefix
}

// Close tears down the channel; pending continuations run with
// ErrChannelClosed.
func (p *Parent[P2C, P2CR, C2P, C2PR, A]) Close() {
	p.endpoint.Close()
}
