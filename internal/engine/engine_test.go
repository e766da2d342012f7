package engine

import (
	"testing"
	"time"

	"github.com/danmuck/ghostnet/internal/crypto"
	"github.com/danmuck/ghostnet/internal/dht"
	"github.com/danmuck/ghostnet/internal/ghost"
	"github.com/danmuck/ghostnet/internal/testutil/testlog"
	"github.com/danmuck/ghostnet/internal/transport"
	"github.com/danmuck/ghostnet/internal/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

type node struct {
	engine *Engine
	client *Client
	events []ClientEvent
}

type outcome struct {
	calls int
	resp  ClientResponse
	err   error
}

func newNode(t *testing.T, n *transport.MemoryNetwork, c *clock, name string, mutate func(*Config)) *node {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.BindURI = "mem://" + name
	cfg.Now = c.Now
	cfg.GossipInterval = 0
	cfg.TimeoutThreshold = 0
	if mutate != nil {
		mutate(&cfg)
	}
	sys, err := crypto.Init()
	require.NoError(t, err)
	e, err := New(cfg, Deps{Crypto: sys, Transports: MemoryTransports(n)})
	require.NoError(t, err)

	nd := &node{engine: e}
	client, err := NewClient(e, func(msg *ghost.Message[ClientEvent, ghost.Ack]) error {
		nd.events = append(nd.events, msg.Take())
		return nil
	})
	require.NoError(t, err)
	nd.client = client
	return nd
}

func (nd *node) request(t *testing.T, req ClientRequest) *outcome {
	t.Helper()
	o := &outcome{}
	_, err := nd.client.Request(req, func(resp ClientResponse, err error) {
		o.calls++
		o.resp = resp
		o.err = err
	})
	require.NoError(t, err)
	return o
}

func settle(t *testing.T, nodes ...*node) {
	t.Helper()
	for i := 0; i < 30; i++ {
		for _, nd := range nodes {
			_, err := nd.client.Process()
			require.NoError(t, err)
			require.True(t, nd.client.Attached())
		}
	}
}

func eventsOf[T ClientEvent](nd *node) []T {
	out := make([]T, 0)
	for _, ev := range nd.events {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func peerAddresses(peers []dht.PeerData) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Address)
	}
	return out
}

func connectPair(t *testing.T, n *transport.MemoryNetwork, c *clock) (*node, *node) {
	t.Helper()
	a := newNode(t, n, c, "alpha", nil)
	b := newNode(t, n, c, "beta", nil)
	boot := a.request(t, Bootstrap{URI: "mem://beta"})
	settle(t, a, b)
	require.Equal(t, 1, boot.calls)
	require.NoError(t, boot.err)
	require.Equal(t, "mem://beta", boot.resp.(Bootstrapped).URI)
	return a, b
}

func TestBootstrapConvergesNetworkPeers(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	c := &clock{now: time.UnixMilli(1_000_000)}
	a, b := connectPair(t, n, c)

	aNet, ok := a.engine.Snapshot().Space(NetworkSpace)
	require.True(t, ok)
	require.Equal(t, []string{b.engine.Address()}, peerAddresses(aNet.Peers))
	bNet, _ := b.engine.Snapshot().Space(NetworkSpace)
	require.Equal(t, []string{a.engine.Address()}, peerAddresses(bNet.Peers))

	require.Len(t, eventsOf[PeerHeld](a), 1)
	require.Len(t, eventsOf[PeerHeld](b), 1)
	require.NotEmpty(t, eventsOf[Connected](b))
	require.Empty(t, eventsOf[ErrorOccurred](a))
	require.Empty(t, eventsOf[ErrorOccurred](b))

	work, err := a.client.Process()
	require.NoError(t, err)
	require.False(t, work, "an idle engine reports no work")
}

func TestSpaceGossipAndDirectMessages(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	c := &clock{now: time.UnixMilli(1_000_000)}
	a, b := connectPair(t, n, c)

	joinA := a.request(t, JoinSpace{Space: "chat"})
	joinB := b.request(t, JoinSpace{Space: "chat"})
	settle(t, a, b)
	require.NoError(t, joinA.err)
	require.NoError(t, joinB.err)
	require.Equal(t, "mem://alpha/chat", joinA.resp.(Joined).URI)
	require.Equal(t, a.engine.Address(), joinA.resp.(Joined).Agent)

	peers := a.request(t, PeerList{Space: "chat"})
	settle(t, a, b)
	require.Equal(t, []string{b.engine.Address()}, peerAddresses(peers.resp.(Peers).Peers))

	entry := dht.EntryData{
		Address: "HcEntry1",
		Aspects: []dht.EntryAspect{{TypeHint: "text", Content: []byte("hello space")}},
	}
	published := a.request(t, PublishEntry{Space: "chat", Entry: entry})
	settle(t, a, b)
	require.Equal(t, 1, published.calls)
	require.NoError(t, published.err)

	stored := eventsOf[HandleStoreEntry](b)
	require.Len(t, stored, 1)
	require.Equal(t, "chat", stored[0].Space)
	require.Equal(t, "HcEntry1", stored[0].Entry.Address)
	require.Equal(t, crypto.HashAddress([]byte("hello space")), stored[0].Entry.Aspects[0].Address)

	bChat, _ := b.engine.Snapshot().Space("chat")
	require.Equal(t, []string{"HcEntry1"}, bChat.Entries)

	fetched := b.request(t, FetchEntry{Space: "chat", Address: "HcEntry1"})
	settle(t, a, b)
	require.True(t, fetched.resp.(EntryFetched).Found)

	direct := a.request(t, SendDirectMessage{Space: "chat", To: b.engine.Address(), Content: []byte("psst")})
	settle(t, a, b)
	require.Equal(t, 1, direct.calls)
	require.NoError(t, direct.err)
	msgs := eventsOf[HandleSendDirectMessage](b)
	require.Len(t, msgs, 1)
	require.Equal(t, a.engine.Address(), msgs[0].From)
	require.Equal(t, []byte("psst"), msgs[0].Content)

	dropped := b.request(t, DropEntry{Space: "chat", Address: "HcEntry1"})
	settle(t, a, b)
	require.Equal(t, EntryDropped{Space: "chat", Address: "HcEntry1"}, dropped.resp)
	require.Equal(t, []HandleDropEntry{{Space: "chat", Address: "HcEntry1"}}, eventsOf[HandleDropEntry](b))

	require.Empty(t, eventsOf[ErrorOccurred](a))
	require.Empty(t, eventsOf[ErrorOccurred](b))
}

func TestClientErrorsResolveExactlyOnce(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	a := newNode(t, n, &clock{now: time.UnixMilli(1)}, "alpha", nil)

	reserved := a.request(t, JoinSpace{Space: NetworkSpace})
	joined := a.request(t, JoinSpace{Space: "chat"})
	duplicate := a.request(t, JoinSpace{Space: "chat"})
	unknown := a.request(t, FetchEntry{Space: "nowhere", Address: "HcX"})
	stranger := a.request(t, SendDirectMessage{Space: "chat", To: "HnStranger", Content: []byte("x")})
	invalid := a.request(t, PublishEntry{Space: "chat", Entry: dht.EntryData{Address: "HcEmpty"}})
	unreachable := a.request(t, Bootstrap{URI: "mem://missing"})
	leaveNetwork := a.request(t, LeaveSpace{Space: NetworkSpace})
	settle(t, a)

	for _, o := range []*outcome{reserved, joined, duplicate, unknown, stranger, invalid, unreachable, leaveNetwork} {
		require.Equal(t, 1, o.calls)
	}
	require.ErrorIs(t, reserved.err, ErrReservedSpace)
	require.NoError(t, joined.err)
	require.ErrorIs(t, duplicate.err, ErrSpaceExists)
	require.ErrorIs(t, unknown.err, ErrUnknownSpace)
	require.ErrorIs(t, stranger.err, ErrPeerUnknown)
	require.ErrorIs(t, invalid.err, ErrInvalidEntry)
	require.ErrorIs(t, unreachable.err, transport.ErrUnknownURI)
	require.ErrorIs(t, leaveNetwork.err, ErrReservedSpace)

	left := a.request(t, LeaveSpace{Space: "chat"})
	after := a.request(t, PeerList{Space: "chat"})
	settle(t, a)
	require.Equal(t, Left{Space: "chat"}, left.resp)
	require.ErrorIs(t, after.err, ErrUnknownSpace)
	require.Equal(t, []string{NetworkSpace}, a.engine.Spaces())
	require.NotContains(t, n.Bound(), "mem://alpha/chat")
}

func TestForgedFrameSurfacesError(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	a := newNode(t, n, &clock{now: time.UnixMilli(1)}, "alpha", nil)
	settle(t, a)

	rogue := n.NewTransport()
	_, err := rogue.Bind("mem://rogue")
	require.NoError(t, err)
	require.NoError(t, rogue.Send("req_1", "mem://alpha", []byte("not a frame")))
	_, _, err = rogue.Process()
	require.NoError(t, err)

	settle(t, a)
	failures := eventsOf[ErrorOccurred](a)
	require.Len(t, failures, 1)
	require.Equal(t, NetworkSpace, failures[0].Space)
}

func TestMalformedGossipFromSignedNodeSurfacesError(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	a := newNode(t, n, &clock{now: time.UnixMilli(1)}, "alpha", nil)
	settle(t, a)

	sys, err := crypto.Init()
	require.NoError(t, err)
	id, err := crypto.NewIdentity(sys, nil)
	require.NoError(t, err)
	frame, err := wire.Seal(wire.Message{
		Kind:  wire.KindGossip,
		ID:    1,
		Space: NetworkSpace,
		Node:  id.Address(),
		From:  id.Address(),
		Body:  []byte{0, 1, 2},
	}, id)
	require.NoError(t, err)

	rogue := n.NewTransport()
	_, err = rogue.Bind("mem://rogue")
	require.NoError(t, err)
	require.NoError(t, rogue.Send("req_1", "mem://alpha", frame))
	_, _, err = rogue.Process()
	require.NoError(t, err)

	var errs error
	for i := 0; i < 10; i++ {
		_, err := a.client.Process()
		errs = multierr.Append(errs, err)
	}
	require.ErrorIs(t, errs, dht.ErrMalformedBundle)

	failures := eventsOf[ErrorOccurred](a)
	require.Len(t, failures, 1)
	require.Equal(t, NetworkSpace, failures[0].Space)
	require.ErrorIs(t, failures[0].Err, dht.ErrMalformedBundle)
}

func TestDiscoveryBootstrapsOnFirstTick(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	c := &clock{now: time.UnixMilli(1_000)}
	a := newNode(t, n, c, "alpha", nil)
	b := newNode(t, n, c, "beta", func(cfg *Config) {
		cfg.BootstrapNodes = []string{"mem://alpha", "mem://beta"}
		cfg.Spaces = []SpaceConfig{{Space: "chat", Agent: "HnBetaAgent"}}
	})
	settle(t, a, b)

	aNet, _ := a.engine.Snapshot().Space(NetworkSpace)
	require.Equal(t, []string{b.engine.Address()}, peerAddresses(aNet.Peers))
	require.Equal(t, []string{NetworkSpace, "chat"}, b.engine.Spaces())

	chat, ok := b.engine.Snapshot().Space("chat")
	require.True(t, ok)
	require.Equal(t, "HnBetaAgent", chat.Agent)
	require.Equal(t, "mem://beta/chat", chat.URI)
}

func TestPeersTimeOut(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	c := &clock{now: time.UnixMilli(1_000_000)}
	withTimeout := func(cfg *Config) {
		cfg.TimeoutThreshold = 30 * time.Second
	}
	a := newNode(t, n, c, "alpha", withTimeout)
	b := newNode(t, n, c, "beta", withTimeout)
	a.request(t, Bootstrap{URI: "mem://beta"})
	settle(t, a, b)

	c.now = c.now.Add(31 * time.Second)
	settle(t, a, b)

	timedOut := eventsOf[PeerTimedOut](a)
	require.Len(t, timedOut, 1)
	require.Equal(t, b.engine.Address(), timedOut[0].Peer)
	aNet, _ := a.engine.Snapshot().Space(NetworkSpace)
	require.Empty(t, aNet.Peers)
}

func TestCloseDisconnectsRemotes(t *testing.T) {
	testlog.Start(t)
	n := transport.NewMemoryNetwork()
	c := &clock{now: time.UnixMilli(1_000_000)}
	a, b := connectPair(t, n, c)

	require.NoError(t, a.engine.Close())
	_, err := a.engine.Process()
	require.ErrorIs(t, err, ErrClosed)
	require.NotContains(t, n.Bound(), "mem://alpha")

	settle(t, b)
	require.NotEmpty(t, eventsOf[Disconnected](b))
}

func TestConfigValidation(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Spaces = []SpaceConfig{{Space: "chat"}, {Space: "chat"}}
	require.ErrorIs(t, cfg.Validate(), ErrSpaceExists)

	cfg.Spaces = []SpaceConfig{{Space: "a/b"}}
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.BindURI = " "
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	require.Equal(t, "mem://a/chat", SpaceBindURI("mem://a/", "chat"))
	require.Equal(t, "mem://a", SpaceBindURI("mem://a", NetworkSpace))
}
