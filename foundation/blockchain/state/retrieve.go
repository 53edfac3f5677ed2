package state

import (
	"fmt"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
)

// Status is a summary of the node's view of the network.
type Status struct {
	PeerID          string `json:"peer_id"`
	ChainLength     int    `json:"chain_length"`
	LatestBlockID   uint64 `json:"latest_block_id"`
	LatestBlockHash string `json:"latest_block_hash"`
	KnownPeers      int    `json:"known_peers"`
	Difficulty      string `json:"difficulty"`
}

// String implements the fmt.Stringer interface for logging.
func (st Status) String() string {
	return fmt.Sprintf("peer[%s] length[%d] latest[%d:%s] peers[%d]", st.PeerID, st.ChainLength, st.LatestBlockID, st.LatestBlockHash, st.KnownPeers)
}

// RetrieveSelf returns the identity of this node.
func (s *State) RetrieveSelf() string {
	return s.self
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a copy of the full chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Copy()
}

// QueryBlockByID returns the block with the specified id.
func (s *State) QueryBlockByID(id uint64) (database.Block, error) {
	return s.db.BlockByID(id)
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.self)
}

// RetrieveStatus returns the node's status summary.
func (s *State) RetrieveStatus() Status {
	latest := s.db.LatestBlock()

	return Status{
		PeerID:          s.self,
		ChainLength:     s.db.Length(),
		LatestBlockID:   latest.ID,
		LatestBlockHash: latest.Hash,
		KnownPeers:      s.knownPeers.Len(),
		Difficulty:      s.db.Difficulty(),
	}
}
