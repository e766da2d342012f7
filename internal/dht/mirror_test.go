package dht

import (
	"testing"
	"time"

	"github.com/danmuck/ghostnet/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestDht(t *testing.T, c *clock, mutate func(*Config)) *MirrorDht {
	t.Helper()
	cfg := DefaultConfig(PeerData{Address: "HnSelf", URI: "mem://self", Timestamp: 1})
	cfg.Now = c.Now
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewMirrorDht(cfg)
	require.NoError(t, err)
	return d
}

func run(t *testing.T, d *MirrorDht, cmds ...Command) []Event {
	t.Helper()
	for _, cmd := range cmds {
		require.NoError(t, d.Post(cmd))
	}
	_, events, err := d.Process()
	require.NoError(t, err)
	return events
}

func entry(addr string, aspects ...string) EntryData {
	e := EntryData{Address: addr, Aspects: make([]EntryAspect, 0, len(aspects))}
	for i, a := range aspects {
		e.Aspects = append(e.Aspects, EntryAspect{
			Address:   a,
			TypeHint:  "text",
			Content:   []byte(a),
			PublishTS: uint64(1000 + i),
		})
	}
	return e
}

func TestHoldPeerLastWriterWins(t *testing.T) {
	testlog.Start(t)
	c := &clock{now: time.UnixMilli(10_000)}
	d := newTestDht(t, c, nil)

	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a1", Timestamp: 20}})
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a0", Timestamp: 10}})

	held, ok := d.Peer("HnA")
	require.True(t, ok)
	require.Equal(t, "mem://a1", held.URI)
	require.EqualValues(t, 20, held.Timestamp)

	events := run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a2", Timestamp: 20}})
	require.Empty(t, events)
	held, _ = d.Peer("HnA")
	require.Equal(t, "mem://a1", held.URI)

	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a3", Timestamp: 30}})
	held, _ = d.Peer("HnA")
	require.Equal(t, "mem://a3", held.URI)
}

func TestNewPeerReceivesFullSnapshot(t *testing.T) {
	testlog.Start(t)
	c := &clock{now: time.UnixMilli(10_000)}
	d := newTestDht(t, c, nil)
	run(t, d, HoldEntry{Entry: entry("HcE", "HcA1")})

	events := run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a", Timestamp: 5}})
	require.Len(t, events, 1)
	gossip, ok := events[0].(GossipTo)
	require.True(t, ok)
	require.Equal(t, []string{"HnA"}, gossip.Peers)

	bundle, err := DecodeBundle(gossip.Bundle)
	require.NoError(t, err)
	require.Len(t, bundle.Peers, 2)
	require.Equal(t, "HnSelf", bundle.Peers[0].Address)
	require.Len(t, bundle.Entries, 1)
	require.Equal(t, "HcE", bundle.Entries[0].Address)
}

func TestHoldPeerIgnoresThisPeer(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	events := run(t, d, HoldPeer{Peer: PeerData{Address: "HnSelf", URI: "mem://elsewhere", Timestamp: 99}})
	require.Empty(t, events)
	require.Empty(t, d.PeerList())
	require.Equal(t, "mem://self", d.ThisPeer().URI)
}

func TestDropEntryEmitsPrunedAndForgets(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	run(t, d, HoldEntry{Entry: entry("HcE", "HcA1")})
	aspects, ok := d.AspectsOf("HcE")
	require.True(t, ok)
	require.Len(t, aspects, 1)

	events := run(t, d, DropEntry{Address: "HcE"})
	require.Equal(t, []Event{EntryPruned{Address: "HcE"}}, events)
	_, ok = d.AspectsOf("HcE")
	require.False(t, ok)

	require.Empty(t, run(t, d, DropEntry{Address: "HcE"}))
}

func TestHoldEntryMergesAspects(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	run(t, d, HoldEntry{Entry: entry("HcE", "HcA2")}, HoldEntry{Entry: entry("HcE", "HcA1", "HcA2")})

	aspects, ok := d.AspectsOf("HcE")
	require.True(t, ok)
	require.Len(t, aspects, 2)
	require.Equal(t, "HcA1", aspects[0].Address)
	require.Equal(t, []string{"HcE"}, d.EntryAddressList())
}

func TestFetchEntryAnsweredOncePerMsgID(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	run(t, d, HoldEntry{Entry: entry("HcE", "HcA1")})

	require.NoError(t, d.Post(FetchEntry{MsgID: "m1", Address: "HcE"}))
	require.ErrorIs(t, d.Post(FetchEntry{MsgID: "m1", Address: "HcE"}), ErrInvalidCommand)
	_, events, err := d.Process()
	require.NoError(t, err)
	require.Len(t, events, 1)
	resp := events[0].(FetchEntryResponse)
	require.Equal(t, "m1", resp.MsgID)
	require.True(t, resp.Found)
	require.Len(t, resp.Entry.Aspects, 1)

	require.ErrorIs(t, d.Post(FetchEntry{MsgID: "m1", Address: "HcE"}), ErrInvalidCommand,
		"an answered msg id stays rejected on later ticks")

	events = run(t, d, FetchEntry{MsgID: "m2", Address: "HcMissing"})
	require.Len(t, events, 1)
	require.False(t, events[0].(FetchEntryResponse).Found)
}

func TestBroadcastEntryGossipsToPeers(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnB", URI: "mem://b", Timestamp: 1}})
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a", Timestamp: 1}})

	events := run(t, d, BroadcastEntry{Entry: entry("HcE", "HcA1")})
	require.Len(t, events, 1)
	gossip := events[0].(GossipTo)
	require.Equal(t, []string{"HnA", "HnB"}, gossip.Peers)

	_, ok := d.AspectsOf("HcE")
	require.True(t, ok)
}

func TestHandleGossipRequestsHolds(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnOld", URI: "mem://old", Timestamp: 50}})
	run(t, d, HoldEntry{Entry: entry("HcHeld", "HcA1")})

	raw := EncodeBundle(Bundle{
		Peers: []PeerData{
			{Address: "HnSelf", URI: "mem://self", Timestamp: 100},
			{Address: "HnOld", URI: "mem://old", Timestamp: 40},
			{Address: "HnNew", URI: "mem://new", Timestamp: 1},
		},
		Entries: []EntryData{entry("HcHeld", "HcA1"), entry("HcOther", "HcA9")},
	})

	events := run(t, d, HandleGossip{Bundle: raw})
	require.Equal(t, []Event{
		HoldPeerRequested{Peer: PeerData{Address: "HnNew", URI: "mem://new", Timestamp: 1}},
		HoldEntryRequested{Entry: entry("HcOther", "HcA9")},
	}, events)

	require.Empty(t, run(t, d, HandleGossip{Bundle: raw}), "a seen bundle is ignored")
}

func TestHandleGossipRejectsMalformedBundle(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	require.NoError(t, d.Post(HandleGossip{Bundle: []byte{0, 1, 2}}))
	_, events, err := d.Process()
	require.ErrorIs(t, err, ErrMalformedBundle)
	require.Empty(t, events)

	require.Empty(t, run(t, d), "the error is reported for the tick that applied the bundle")
}

func TestPeerTimesOutAfterThreshold(t *testing.T) {
	testlog.Start(t)
	c := &clock{now: time.UnixMilli(10_000)}
	d := newTestDht(t, c, func(cfg *Config) {
		cfg.TimeoutThreshold = 30 * time.Second
		cfg.GossipInterval = 0
	})
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a", Timestamp: 1}})

	c.Advance(30 * time.Second)
	require.Empty(t, run(t, d))

	c.Advance(time.Millisecond)
	require.Equal(t, []Event{PeerTimedOut{Peer: "HnA"}}, run(t, d))
	_, ok := d.Peer("HnA")
	require.False(t, ok)
}

func TestGossipIntervalRefreshesThisPeer(t *testing.T) {
	testlog.Start(t)
	c := &clock{now: time.UnixMilli(10_000)}
	d := newTestDht(t, c, func(cfg *Config) {
		cfg.GossipInterval = 5 * time.Second
		cfg.TimeoutThreshold = 0
	})
	run(t, d, HoldPeer{Peer: PeerData{Address: "HnA", URI: "mem://a", Timestamp: 1}})

	c.Advance(4 * time.Second)
	require.Empty(t, run(t, d))

	c.Advance(time.Second)
	events := run(t, d)
	require.Len(t, events, 1)
	gossip := events[0].(GossipUnreliablyTo)
	require.Equal(t, []string{"HnA"}, gossip.Peers)
	bundle, err := DecodeBundle(gossip.Bundle)
	require.NoError(t, err)
	require.Equal(t, Millis(c.now), bundle.Peers[0].Timestamp)
	require.Equal(t, Millis(c.now), d.ThisPeer().Timestamp)

	_, events, err = d.Process()
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestEntryTTLPrunes(t *testing.T) {
	testlog.Start(t)
	c := &clock{now: time.UnixMilli(10_000)}
	d := newTestDht(t, c, func(cfg *Config) {
		cfg.EntryTTL = time.Minute
		cfg.GossipInterval = 0
	})
	fresh := EntryData{Address: "HcFresh", Aspects: []EntryAspect{{Address: "HcF", PublishTS: 10_000}}}
	run(t, d, HoldEntry{Entry: fresh})

	c.Advance(time.Minute)
	require.Empty(t, run(t, d))
	c.Advance(time.Millisecond)
	require.Equal(t, []Event{EntryPruned{Address: "HcFresh"}}, run(t, d))
}

func TestPostRejectsInvalidCommands(t *testing.T) {
	testlog.Start(t)
	d := newTestDht(t, &clock{now: time.UnixMilli(1)}, nil)
	require.ErrorIs(t, d.Post(HoldPeer{}), ErrInvalidCommand)
	require.ErrorIs(t, d.Post(FetchEntry{Address: "HcE"}), ErrInvalidCommand)
	require.ErrorIs(t, d.Post(nil), ErrInvalidCommand)
}
