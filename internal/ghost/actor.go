package ghost

import "errors"

var ErrEndpointTaken = errors.New("ghost: parent endpoint already taken")

// Actor is a unit of work driven by Process. P2C/P2CR are the requests the
// parent sends and their responses; C2P/C2PR travel the other way.
type Actor[P2C, P2CR, C2P, C2PR any] interface {
	// TakeParentEndpoint hands the parent side of the actor's channel to its
	// owner. It succeeds once.
	TakeParentEndpoint() (*Endpoint[P2C, P2CR, C2P, C2PR], bool)
	// Process drains the actor's own endpoint and owned children.
	Process() (WorkWasDone, error)
}

// Hosted is embedded by actors to own both sides of their parent channel
// until the parent takes its side.
type Hosted[P2C, P2CR, C2P, C2PR any] struct {
	forParent *Endpoint[P2C, P2CR, C2P, C2PR]
	self      *Endpoint[C2P, C2PR, P2C, P2CR]
	Guard     ProcessGuard
}

func NewHosted[P2C, P2CR, C2P, C2PR any](prefix string, opts ...EndpointOption) Hosted[P2C, P2CR, C2P, C2PR] {
	parent, self := NewChannel[P2C, P2CR, C2P, C2PR](prefix, opts...)
	return Hosted[P2C, P2CR, C2P, C2PR]{
		forParent: parent,
		self:      self,
		Guard:     NewProcessGuard(prefix),
	}
}

func (h *Hosted[P2C, P2CR, C2P, C2PR]) TakeParentEndpoint() (*Endpoint[P2C, P2CR, C2P, C2PR], bool) {
	ep := h.forParent
	h.forParent = nil
	return ep, ep != nil
}

// Self is the actor's own side of the parent channel.
func (h *Hosted[P2C, P2CR, C2P, C2PR]) Self() *Endpoint[C2P, C2PR, P2C, P2CR] {
	return h.self
}
