package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
)

// MineNextBlock attempts to create a new block holding the data with a
// proper hash on top of the specified tail. The work is cancelled through
// the context.
func (s *State) MineNextBlock(ctx context.Context, tail database.Block, data string) (database.Block, error) {
	s.evHandler("state: MineNextBlock: MINING: perform POW: blk[%d]", tail.ID+1)

	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:  tail,
		Data:       data,
		Difficulty: s.db.Difficulty(),
		EvHandler:  s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	return block, nil
}

// AddLocalBlock appends a block this node mined and broadcasts it on the
// blocks topic. The block stays appended when the broadcast fails.
func (s *State) AddLocalBlock(ctx context.Context, block database.Block) error {
	s.evHandler("state: AddLocalBlock: started: blk[%d]", block.ID)
	defer s.evHandler("state: AddLocalBlock: completed: blk[%d]", block.ID)

	if err := s.db.TryAddBlock(block); err != nil {
		return err
	}

	s.events.Send(EventBlockAdded, block)

	if err := s.NetSendBlock(ctx, block); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	return nil
}

// =============================================================================

// ProcessMessage applies a message received from a peer. When the message
// asks this node for its chain, the response to queue is returned.
func (s *State) ProcessMessage(from string, data []byte) (*gossip.ChainResponse, error) {
	msg, err := gossip.Decode(data)
	if err != nil {
		return nil, err
	}

	switch msg.Kind {
	case gossip.KindChainResponse:
		return nil, s.processChainResponse(from, *msg.ChainResponse)

	case gossip.KindLocalChainRequest:
		return s.processChainRequest(from, *msg.ChainRequest), nil

	case gossip.KindBlock:
		return nil, s.processBlock(from, *msg.Block)
	}

	return nil, fmt.Errorf("%w: kind %q", gossip.ErrMalformedMessage, msg.Kind)
}

// processChainResponse runs fork choice against a chain addressed to this
// node. Responses addressed to other nodes are ignored.
func (s *State) processChainResponse(from string, resp gossip.ChainResponse) error {
	if resp.Receiver != s.self {
		return nil
	}

	s.evHandler("state: processChainResponse: peer[%s]: blocks[%d]", from, len(resp.Blocks))

	replaced, err := s.db.ResolveFork(resp.Blocks)
	if err != nil {
		return err
	}

	if replaced {
		s.evHandler("state: processChainResponse: chain replaced: length[%d]", s.db.Length())
		s.events.Send(EventChainReplaced, struct {
			From   string `json:"from"`
			Length int    `json:"length"`
		}{
			From:   from,
			Length: s.db.Length(),
		})
	}

	return nil
}

// processChainRequest answers a request naming this node with the full
// chain, addressed to the peer that published the request.
func (s *State) processChainRequest(from string, req gossip.LocalChainRequest) *gossip.ChainResponse {
	if req.FromPeerID != s.self {
		return nil
	}

	s.evHandler("state: processChainRequest: peer[%s]: chain requested", from)

	return &gossip.ChainResponse{
		Blocks:   s.db.Copy(),
		Receiver: from,
	}
}

// processBlock tries to extend the chain with a block mined by a peer.
func (s *State) processBlock(from string, block database.Block) error {
	if err := s.db.TryAddBlock(block); err != nil {
		return fmt.Errorf("peer[%s]: %w", from, err)
	}

	s.evHandler("state: processBlock: peer[%s]: blk[%d]: added", from, block.ID)
	s.events.Send(EventBlockAdded, block)

	return nil
}
