// Package peer maintains the peer related information such as the set
// of discovered peers and their discovery records.
package peer

import (
	"sort"
	"sync"
	"time"
)

// Peer represents information about a node discovered on the network.
type Peer struct {
	ID       string    `json:"id"`
	Addrs    []string  `json:"addrs"`
	LastSeen time.Time `json:"last_seen"`
}

// New contructs a new peer value seen at the specified time.
func New(id string, addrs []string, seen time.Time) Peer {
	return Peer{
		ID:       id,
		Addrs:    addrs,
		LastSeen: seen,
	}
}

// Match validates if the specified id matches this peer.
func (p Peer) Match(id string) bool {
	return p.ID == id
}

// Expired reports if the discovery record is older than the ttl.
func (p Peer) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.LastSeen) > ttl
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of
// discovered peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[string]Peer
}

// NewPeerSet constructs a new set to manage peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]Peer),
	}
}

// Add adds a new peer to the set or refreshes the discovery record of a
// known peer. It reports if the peer is new.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer.ID]
	ps.set[peer.ID] = peer

	return !exists
}

// Remove removes a peer from the set.
func (ps *PeerSet) Remove(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, id)
}

// Expire removes every peer whose discovery record is older than the ttl,
// unless the alive function confirms the peer is still present. Peers
// confirmed alive get their record refreshed. The removed peers are
// returned.
func (ps *PeerSet) Expire(now time.Time, ttl time.Duration, alive func(id string) bool) []Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var expired []Peer
	for id, peer := range ps.set {
		if !peer.Expired(now, ttl) {
			continue
		}

		if alive != nil && alive(id) {
			peer.LastSeen = now
			ps.set[id] = peer
			continue
		}

		delete(ps.set, id)
		expired = append(expired, peer)
	}

	sortPeers(expired)

	return expired
}

// Copy returns a list of the known peers sorted by id, excluding the
// specified id.
func (ps *PeerSet) Copy(id string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for _, peer := range ps.set {
		if !peer.Match(id) {
			peers = append(peers, peer)
		}
	}

	sortPeers(peers)

	return peers
}

// Len returns the number of peers in the set.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// sortPeers orders the peers by id so listings are stable.
func sortPeers(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})
}
