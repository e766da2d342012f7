package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const MemoryScheme = "mem://"

// MemoryNetwork is a registry of in-process transports addressed by mem://
// URIs. Transports on one network may be driven from different goroutines.
type MemoryNetwork struct {
	mu        sync.Mutex
	listeners map[string]*Memory
	seq       uint64
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{listeners: make(map[string]*Memory)}
}

// NewTransport returns an unbound transport attached to the network.
func (n *MemoryNetwork) NewTransport() *Memory {
	return &Memory{
		net:      n,
		remotes:  make(map[string]string),
		byID:     make(map[string]string),
		commands: make([]Command, 0),
		inbox:    make([]Event, 0),
	}
}

// Bound lists every bound URI, sorted.
func (n *MemoryNetwork) Bound() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.listeners))
	for uri := range n.listeners {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

func (n *MemoryNetwork) nextConnectionID() string {
	n.seq++
	return fmt.Sprintf("memconn_%d", n.seq)
}

// Memory is a Transport on a MemoryNetwork. Connections are symmetric: each
// side holds its own connection id for the other.
type Memory struct {
	net      *MemoryNetwork
	uri      string
	remotes  map[string]string // remote uri -> connection id
	byID     map[string]string // connection id -> remote uri
	commands []Command
	inbox    []Event
	closed   bool
}

var _ Transport = (*Memory)(nil)

// URI is the bound URI, or empty before Bind.
func (m *Memory) URI() string {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	return m.uri
}

func (m *Memory) Post(cmd Command) error {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.commands = append(m.commands, cmd)
	return nil
}

func (m *Memory) Bind(uri string) (string, error) {
	if !strings.HasPrefix(uri, MemoryScheme) {
		return "", fmt.Errorf("%w: %q is not a %s uri", ErrUnknownURI, uri, MemoryScheme)
	}
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	if owner, ok := m.net.listeners[uri]; ok && owner != m {
		return "", fmt.Errorf("%w: %s", ErrAddressInUse, uri)
	}
	if m.uri != "" && m.uri != uri {
		delete(m.net.listeners, m.uri)
	}
	m.uri = uri
	m.net.listeners[uri] = m
	log.Debug().Str("uri", uri).Msg("transport.Memory.bind")
	return uri, nil
}

func (m *Memory) Connect(uri, requestID string) error {
	return m.Post(Connect{URI: uri, RequestID: requestID})
}

func (m *Memory) Send(requestID, uri string, payload []byte) error {
	return m.Post(SendMessage{RequestID: requestID, Address: uri, Payload: payload})
}

func (m *Memory) ConnectionList() ([]string, error) {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(m.remotes))
	for uri := range m.remotes {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out, nil
}

// Process applies posted commands, then returns them together with events
// delivered by remote transports since the last call.
func (m *Memory) Process() (bool, []Event, error) {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	if m.closed {
		return false, nil, nil
	}
	commands := m.commands
	m.commands = make([]Command, 0)

	events := make([]Event, 0, len(commands)+len(m.inbox))
	for _, cmd := range commands {
		events = m.apply(cmd, events)
	}
	events = append(events, m.inbox...)
	m.inbox = make([]Event, 0)
	return len(commands) > 0 || len(events) > 0, events, nil
}

func (m *Memory) apply(cmd Command, events []Event) []Event {
	switch c := cmd.(type) {
	case Bind:
		if owner, ok := m.net.listeners[c.URI]; ok && owner != m {
			return append(events, ErrorOccurred{URI: c.URI, Err: fmt.Errorf("%w: %s", ErrAddressInUse, c.URI)})
		}
		if m.uri != "" {
			delete(m.net.listeners, m.uri)
		}
		m.uri = c.URI
		m.net.listeners[c.URI] = m
		return events
	case Connect:
		id, err := m.connectLocked(c.URI)
		if err != nil {
			return append(events, ErrorOccurred{RequestID: c.RequestID, URI: c.URI, Err: err})
		}
		return append(events, ConnectResult{RequestID: c.RequestID, ConnectionID: id, URI: c.URI})
	case SendMessage:
		id, opened := m.remotes[c.Address]
		if !opened {
			var err error
			id, err = m.connectLocked(c.Address)
			if err != nil {
				return append(events, ErrorOccurred{RequestID: c.RequestID, URI: c.Address, Err: err})
			}
			events = append(events, ConnectResult{ConnectionID: id, URI: c.Address})
		}
		remote := m.net.listeners[c.Address]
		if remote == nil || remote.closed {
			return append(events, ErrorOccurred{
				RequestID: c.RequestID,
				URI:       c.Address,
				Err:       fmt.Errorf("%w: %s", ErrConnectionClosed, id),
			})
		}
		payload := make([]byte, len(c.Payload))
		copy(payload, c.Payload)
		remote.inbox = append(remote.inbox, ReceivedData{
			ConnectionID: remote.remotes[m.uri],
			URI:          m.uri,
			Payload:      payload,
		})
		return events
	default:
		return append(events, ErrorOccurred{Err: fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)})
	}
}

func (m *Memory) connectLocked(uri string) (string, error) {
	if m.uri == "" {
		return "", ErrNotBound
	}
	if id, ok := m.remotes[uri]; ok {
		return id, nil
	}
	remote, ok := m.net.listeners[uri]
	if !ok || remote.closed {
		return "", fmt.Errorf("%w: %s", ErrUnknownURI, uri)
	}
	local := m.net.nextConnectionID()
	m.remotes[uri] = local
	m.byID[local] = uri

	if _, known := remote.remotes[m.uri]; !known {
		theirs := m.net.nextConnectionID()
		remote.remotes[m.uri] = theirs
		remote.byID[theirs] = m.uri
		remote.inbox = append(remote.inbox, IncomingConnectionEstablished{ConnectionID: theirs, URI: m.uri})
	}
	log.Debug().Str("uri", m.uri).Str("remote", uri).Str("connection_id", local).Msg("transport.Memory.connect")
	return local, nil
}

// Close unbinds the transport and closes every connection. Remotes observe
// ConnectionClosed on their next Process.
func (m *Memory) Close() error {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for uri := range m.remotes {
		remote, ok := m.net.listeners[uri]
		if !ok {
			continue
		}
		if theirs, ok := remote.remotes[m.uri]; ok {
			delete(remote.remotes, m.uri)
			delete(remote.byID, theirs)
			remote.inbox = append(remote.inbox, ConnectionClosed{ConnectionID: theirs, URI: m.uri})
		}
	}
	if m.uri != "" && m.net.listeners[m.uri] == m {
		delete(m.net.listeners, m.uri)
	}
	m.remotes = make(map[string]string)
	m.byID = make(map[string]string)
	m.commands = nil
	m.inbox = nil
	return nil
}
