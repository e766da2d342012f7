package engine

import "github.com/danmuck/ghostnet/internal/dht"

// Snapshot is a point-in-time copy of the engine state for read-only
// consumers on other goroutines.
type Snapshot struct {
	Name    string          `json:"name"`
	Address string          `json:"address"`
	Spaces  []SpaceSnapshot `json:"spaces"`
}

type SpaceSnapshot struct {
	Space       string         `json:"space"`
	Agent       string         `json:"agent"`
	URI         string         `json:"uri"`
	Peers       []dht.PeerData `json:"peers"`
	Entries     []string       `json:"entries"`
	Connections []string       `json:"connections"`
}

// Space returns the snapshot of key.
func (s Snapshot) Space(key string) (SpaceSnapshot, bool) {
	for _, sp := range s.Spaces {
		if sp.Space == key {
			return sp, true
		}
	}
	return SpaceSnapshot{}, false
}

// Snapshot copies the current state. Call it between Process calls.
func (e *Engine) Snapshot() Snapshot {
	out := Snapshot{
		Name:    e.cfg.Name,
		Address: e.Address(),
		Spaces:  make([]SpaceSnapshot, 0, len(e.order)),
	}
	for _, key := range e.order {
		sp := e.spaces[key]
		gw := sp.gw.Actor()
		out.Spaces = append(out.Spaces, SpaceSnapshot{
			Space:       key,
			Agent:       sp.agent,
			URI:         sp.uri,
			Peers:       gw.PeerList(),
			Entries:     gw.EntryAddressList(),
			Connections: gw.Connections(),
		})
	}
	return out
}
