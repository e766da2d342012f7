// Package dht defines the DHT capability driven by gateways: the peer and
// entry model, the command/event contract, a fully replicating reference
// implementation, and the ghost protocol between a gateway and its DHT
// child.
package dht

import (
	"sort"
	"time"
)

// PeerData is a discovery record for one node. Timestamp is milliseconds
// since the Unix epoch as reported by the node itself.
type PeerData struct {
	Address   string `json:"address"`
	URI       string `json:"uri"`
	Timestamp uint64 `json:"timestamp"`
}

// EntryAspect is one addressed piece of an entry.
type EntryAspect struct {
	Address   string `json:"address"`
	TypeHint  string `json:"type_hint"`
	Content   []byte `json:"content"`
	PublishTS uint64 `json:"publish_ts"`
}

// EntryData groups the aspects held for one entry address.
type EntryData struct {
	Address string        `json:"address"`
	Aspects []EntryAspect `json:"aspects"`
}

// Clone returns a deep copy.
func (e EntryData) Clone() EntryData {
	out := EntryData{Address: e.Address, Aspects: make([]EntryAspect, 0, len(e.Aspects))}
	for _, a := range e.Aspects {
		content := make([]byte, len(a.Content))
		copy(content, a.Content)
		a.Content = content
		out.Aspects = append(out.Aspects, a)
	}
	return out
}

// Merge adds the aspects of other not already present by address and
// reports whether any were added. Aspects stay sorted by address.
func (e *EntryData) Merge(other EntryData) bool {
	held := make(map[string]struct{}, len(e.Aspects))
	for _, a := range e.Aspects {
		held[a.Address] = struct{}{}
	}
	added := false
	for _, a := range other.Clone().Aspects {
		if _, ok := held[a.Address]; ok {
			continue
		}
		held[a.Address] = struct{}{}
		e.Aspects = append(e.Aspects, a)
		added = true
	}
	if added {
		sort.Slice(e.Aspects, func(i, j int) bool {
			return e.Aspects[i].Address < e.Aspects[j].Address
		})
	}
	return added
}

// Covers reports whether every aspect of other is already held.
func (e EntryData) Covers(other EntryData) bool {
	held := make(map[string]struct{}, len(e.Aspects))
	for _, a := range e.Aspects {
		held[a.Address] = struct{}{}
	}
	for _, a := range other.Aspects {
		if _, ok := held[a.Address]; !ok {
			return false
		}
	}
	return true
}

// NewestPublish is the latest aspect publish time, or 0 without aspects.
func (e EntryData) NewestPublish() uint64 {
	var newest uint64
	for _, a := range e.Aspects {
		if a.PublishTS > newest {
			newest = a.PublishTS
		}
	}
	return newest
}

// Millis converts t to the millisecond timestamps carried by PeerData and
// EntryAspect.
func Millis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
