package state

import (
	"context"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
)

// NetSendBlock broadcasts a block this node mined to every peer.
func (s *State) NetSendBlock(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlock: started: blk[%d]", block.ID)
	defer s.evHandler("state: NetSendBlock: completed: blk[%d]", block.ID)

	data, err := gossip.EncodeBlock(block)
	if err != nil {
		return err
	}

	return s.network.Publish(ctx, s.topics.For(gossip.KindBlock), data)
}

// NetSendChainResponse broadcasts a chain response. Every peer receives it,
// only the named receiver acts on it.
func (s *State) NetSendChainResponse(ctx context.Context, resp gossip.ChainResponse) error {
	s.evHandler("state: NetSendChainResponse: started: receiver[%s]: blocks[%d]", resp.Receiver, len(resp.Blocks))
	defer s.evHandler("state: NetSendChainResponse: completed: receiver[%s]", resp.Receiver)

	data, err := gossip.EncodeChainResponse(resp)
	if err != nil {
		return err
	}

	return s.network.Publish(ctx, s.topics.For(gossip.KindChainResponse), data)
}

// NetRequestPeerChains asks every known peer to publish its chain. Each
// request names one peer in from_peer_id and only that peer answers, so
// N known peers means N requests. The number of requests sent is returned.
func (s *State) NetRequestPeerChains(ctx context.Context) int {
	s.evHandler("state: NetRequestPeerChains: started")
	defer s.evHandler("state: NetRequestPeerChains: completed")

	var sent int
	for _, pr := range s.RetrieveKnownPeers() {
		data, err := gossip.EncodeLocalChainRequest(gossip.LocalChainRequest{FromPeerID: pr.ID})
		if err != nil {
			s.evHandler("state: NetRequestPeerChains: peer[%s]: ERROR: %s", pr.ID, err)
			continue
		}

		if err := s.network.Publish(ctx, s.topics.For(gossip.KindLocalChainRequest), data); err != nil {
			s.evHandler("state: NetRequestPeerChains: peer[%s]: WARNING: %s", pr.ID, err)
			continue
		}

		s.evHandler("state: NetRequestPeerChains: peer[%s]: chain requested", pr.ID)
		sent++
	}

	return sent
}

// =============================================================================

// AddKnownPeer adds or refreshes a discovered peer. It reports if the
// peer is new.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	if pr.Match(s.self) {
		return false
	}

	if !s.knownPeers.Add(pr) {
		return false
	}

	s.evHandler("state: AddKnownPeer: peer[%s]: added", pr.ID)
	s.events.Send(EventPeerAdded, pr)

	return true
}

// ExpirePeers removes the peers whose discovery record is older than the
// ttl and that the transport no longer holds a connection to.
func (s *State) ExpirePeers(now time.Time, ttl time.Duration) []peer.Peer {
	expired := s.knownPeers.Expire(now, ttl, s.network.Connected)

	for _, pr := range expired {
		s.evHandler("state: ExpirePeers: peer[%s]: expired", pr.ID)
		s.events.Send(EventPeerExpired, pr)
	}

	return expired
}
