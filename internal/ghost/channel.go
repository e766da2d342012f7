package ghost

import "time"

// NewChannel creates a linked endpoint pair. The first endpoint belongs to
// the parent, the second to the child.
func NewChannel[P2C, P2CR, C2P, C2PR any](prefix string, opts ...EndpointOption) (
	*Endpoint[P2C, P2CR, C2P, C2PR],
	*Endpoint[C2P, C2PR, P2C, P2CR],
) {
	cfg := endpointConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	down := &fifo[frame[P2C, C2PR]]{}
	up := &fifo[frame[C2P, P2CR]]{}
	l := &link{}
	parent := newEndpoint[P2C, P2CR, C2P, C2PR](prefix+".to_child", down, up, l, cfg)
	child := newEndpoint[C2P, C2PR, P2C, P2CR](prefix+".to_parent", up, down, l, cfg)
	return parent, child
}
