package dht

import (
	"fmt"
	"sort"
	"time"

	"github.com/danmuck/ghostnet/internal/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// MirrorDht replicates every peer record and entry to every held peer.
type MirrorDht struct {
	cfg      Config
	this     PeerData
	peers    map[string]PeerData
	lastSeen map[string]time.Time
	entries  map[string]EntryData
	commands []Command

	seen    *lru.Cache[string, struct{}]
	fetched *lru.Cache[string, struct{}]

	lastGossip time.Time
}

var _ Dht = (*MirrorDht)(nil)

func NewMirrorDht(cfg Config) (*MirrorDht, error) {
	if cfg.ThisPeer.Address == "" {
		return nil, fmt.Errorf("%w: this peer address is required", ErrInvalidCommand)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = DefaultSeenCacheSize
	}
	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	fetched, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	now := cfg.Now()
	this := cfg.ThisPeer
	if this.Timestamp == 0 {
		this.Timestamp = Millis(now)
	}
	return &MirrorDht{
		cfg:        cfg,
		this:       this,
		peers:      make(map[string]PeerData),
		lastSeen:   make(map[string]time.Time),
		entries:    make(map[string]EntryData),
		commands:   make([]Command, 0),
		seen:       seen,
		fetched:    fetched,
		lastGossip: now,
	}, nil
}

func (d *MirrorDht) PeerList() []PeerData {
	out := make([]PeerData, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (d *MirrorDht) Peer(address string) (PeerData, bool) {
	if address == d.this.Address {
		return d.this, true
	}
	p, ok := d.peers[address]
	return p, ok
}

func (d *MirrorDht) ThisPeer() PeerData {
	return d.this
}

func (d *MirrorDht) EntryAddressList() []string {
	out := make([]string, 0, len(d.entries))
	for addr := range d.entries {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (d *MirrorDht) AspectsOf(address string) ([]EntryAspect, bool) {
	e, ok := d.entries[address]
	if !ok {
		return nil, false
	}
	return e.Clone().Aspects, true
}

func (d *MirrorDht) Post(cmd Command) error {
	if err := ValidateCommand(cmd); err != nil {
		return err
	}
	if f, ok := cmd.(FetchEntry); ok {
		if d.fetched.Contains(f.MsgID) {
			return fmt.Errorf("%w: msg id %s already answered", ErrInvalidCommand, f.MsgID)
		}
		d.fetched.Add(f.MsgID, struct{}{})
	}
	d.commands = append(d.commands, cmd)
	return nil
}

// Process applies queued commands in order, then runs liveness, gossip and
// expiry timers against Config.Now.
func (d *MirrorDht) Process() (bool, []Event, error) {
	commands := d.commands
	d.commands = make([]Command, 0)

	events := make([]Event, 0)
	var errs error
	for _, cmd := range commands {
		var err error
		events, err = d.apply(cmd, events)
		errs = multierr.Append(errs, err)
	}

	now := d.cfg.Now()
	events = d.expirePeers(now, events)
	events = d.gossipSelf(now, events)
	events = d.expireEntries(now, events)
	return len(commands) > 0 || len(events) > 0, events, errs
}

// apply reports a remote bundle that fails to decode; every other command
// was validated by Post.
func (d *MirrorDht) apply(cmd Command, events []Event) ([]Event, error) {
	switch c := cmd.(type) {
	case HoldPeer:
		return d.holdPeer(c.Peer, events), nil
	case HoldEntry:
		d.holdEntry(c.Entry)
	case BroadcastEntry:
		d.holdEntry(c.Entry)
		if peers := d.peerAddresses(); len(peers) > 0 {
			events = append(events, GossipTo{
				Peers:  peers,
				Bundle: EncodeBundle(Bundle{Entries: []EntryData{c.Entry.Clone()}}),
			})
		}
	case DropEntry:
		if _, ok := d.entries[c.Address]; !ok {
			return events, nil
		}
		delete(d.entries, c.Address)
		events = append(events, EntryPruned{Address: c.Address})
	case FetchEntry:
		entry, found := d.entries[c.Address]
		if !found {
			entry = EntryData{Address: c.Address, Aspects: make([]EntryAspect, 0)}
		}
		events = append(events, FetchEntryResponse{MsgID: c.MsgID, Entry: entry.Clone(), Found: found})
	case HandleGossip:
		return d.handleGossip(c.Bundle, events)
	}
	return events, nil
}

// holdPeer is last-writer-wins on Timestamp; an equal or older record is a
// no-op. A newly held peer is sent everything this node holds.
func (d *MirrorDht) holdPeer(p PeerData, events []Event) []Event {
	if p.Address == d.this.Address {
		return events
	}
	held, known := d.peers[p.Address]
	if known && p.Timestamp <= held.Timestamp {
		return events
	}
	d.peers[p.Address] = p
	d.lastSeen[p.Address] = d.cfg.Now()
	if known {
		return events
	}
	log.Debug().Str("peer", p.Address).Str("uri", p.URI).Msg("dht.MirrorDht.hold_peer")
	return append(events, GossipTo{
		Peers:  []string{p.Address},
		Bundle: EncodeBundle(d.snapshot()),
	})
}

func (d *MirrorDht) holdEntry(e EntryData) {
	held, ok := d.entries[e.Address]
	if !ok {
		held = EntryData{Address: e.Address, Aspects: make([]EntryAspect, 0)}
	}
	held.Merge(e)
	d.entries[e.Address] = held
}

func (d *MirrorDht) handleGossip(raw []byte, events []Event) ([]Event, error) {
	key := crypto.HashAddress(raw)
	if d.seen.Contains(key) {
		return events, nil
	}
	d.seen.Add(key, struct{}{})

	bundle, err := DecodeBundle(raw)
	if err != nil {
		log.Warn().Err(err).Msg("dht.MirrorDht.gossip_rejected")
		return events, err
	}
	for _, p := range bundle.Peers {
		if p.Address == "" || p.Address == d.this.Address {
			continue
		}
		if held, ok := d.peers[p.Address]; ok && p.Timestamp <= held.Timestamp {
			continue
		}
		events = append(events, HoldPeerRequested{Peer: p})
	}
	for _, e := range bundle.Entries {
		if e.Address == "" {
			continue
		}
		if held, ok := d.entries[e.Address]; ok && held.Covers(e) {
			continue
		}
		events = append(events, HoldEntryRequested{Entry: e})
	}
	return events, nil
}

func (d *MirrorDht) expirePeers(now time.Time, events []Event) []Event {
	if d.cfg.TimeoutThreshold <= 0 {
		return events
	}
	expired := make([]string, 0)
	for addr, seen := range d.lastSeen {
		if now.Sub(seen) > d.cfg.TimeoutThreshold {
			expired = append(expired, addr)
		}
	}
	sort.Strings(expired)
	for _, addr := range expired {
		delete(d.peers, addr)
		delete(d.lastSeen, addr)
		log.Debug().Str("peer", addr).Msg("dht.MirrorDht.peer_timed_out")
		events = append(events, PeerTimedOut{Peer: addr})
	}
	return events
}

func (d *MirrorDht) gossipSelf(now time.Time, events []Event) []Event {
	if d.cfg.GossipInterval <= 0 || now.Sub(d.lastGossip) < d.cfg.GossipInterval {
		return events
	}
	d.lastGossip = now
	if ts := Millis(now); ts > d.this.Timestamp {
		d.this.Timestamp = ts
	}
	peers := d.peerAddresses()
	if len(peers) == 0 {
		return events
	}
	return append(events, GossipUnreliablyTo{
		Peers:  peers,
		Bundle: EncodeBundle(Bundle{Peers: []PeerData{d.this}}),
	})
}

func (d *MirrorDht) expireEntries(now time.Time, events []Event) []Event {
	if d.cfg.EntryTTL <= 0 {
		return events
	}
	cutoff := Millis(now.Add(-d.cfg.EntryTTL))
	for _, addr := range d.EntryAddressList() {
		if d.entries[addr].NewestPublish() >= cutoff {
			continue
		}
		delete(d.entries, addr)
		events = append(events, EntryPruned{Address: addr})
	}
	return events
}

func (d *MirrorDht) peerAddresses() []string {
	out := make([]string, 0, len(d.peers))
	for addr := range d.peers {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (d *MirrorDht) snapshot() Bundle {
	b := Bundle{
		Peers:   append([]PeerData{d.this}, d.PeerList()...),
		Entries: make([]EntryData, 0, len(d.entries)),
	}
	for _, addr := range d.EntryAddressList() {
		b.Entries = append(b.Entries, d.entries[addr].Clone())
	}
	return b
}
