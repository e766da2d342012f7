// Package discovery seeds a node with candidate peer URIs.
package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrReleased   = errors.New("discovery: released")
	ErrInvalidURI = errors.New("discovery: invalid uri")
)

// Discovery advertises this node and returns URIs of other nodes.
type Discovery interface {
	Advertise() error
	Discover() ([]string, error)
	Release() error
	Flush() error
}

// Static returns a fixed bootstrap list.
type Static struct {
	uris     []string
	released bool
}

// NewStatic drops blank and duplicate URIs and keeps the rest in order.
func NewStatic(uris []string) *Static {
	seen := make(map[string]struct{}, len(uris))
	out := make([]string, 0, len(uris))
	for _, raw := range uris {
		uri := strings.TrimSpace(raw)
		if uri == "" {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return &Static{uris: out}
}

func (s *Static) Advertise() error {
	if s.released {
		return ErrReleased
	}
	return nil
}

func (s *Static) Discover() ([]string, error) {
	if s.released {
		return nil, ErrReleased
	}
	out := make([]string, len(s.uris))
	copy(out, s.uris)
	return out, nil
}

func (s *Static) Release() error {
	s.released = true
	return nil
}

func (s *Static) Flush() error {
	return nil
}

// Registry is an in-process rendezvous shared by nodes in one process.
type Registry struct {
	mu    sync.Mutex
	items map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]struct{})}
}

// Member returns the Discovery view of the node bound at uri.
func (r *Registry) Member(uri string) (*Member, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	return &Member{registry: r, uri: uri}, nil
}

// Advertised lists every advertised URI, sorted.
func (r *Registry) Advertised() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for uri := range r.items {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Member advertises one URI in a Registry and discovers the others.
type Member struct {
	registry *Registry
	uri      string
	released bool
}

func (m *Member) Advertise() error {
	if m.released {
		return ErrReleased
	}
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()
	m.registry.items[m.uri] = struct{}{}
	return nil
}

func (m *Member) Discover() ([]string, error) {
	if m.released {
		return nil, ErrReleased
	}
	all := m.registry.Advertised()
	out := make([]string, 0, len(all))
	for _, uri := range all {
		if uri != m.uri {
			out = append(out, uri)
		}
	}
	return out, nil
}

func (m *Member) Release() error {
	if m.released {
		return nil
	}
	m.released = true
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()
	delete(m.registry.items, m.uri)
	return nil
}

// Flush withdraws the advertisement until the next Advertise.
func (m *Member) Flush() error {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()
	delete(m.registry.items, m.uri)
	return nil
}
