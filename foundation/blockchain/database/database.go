// Package database maintains the in-memory blockchain, the rules for
// extending it and the fork-choice rule between competing chains.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
)

// ErrBothChainsInvalid is returned by Choose when neither candidate chain
// is valid. The node can't know which chain is the truth.
var ErrBothChainsInvalid = errors.New("local and remote chains are both invalid")

// ErrNotFound is returned when a block can't be located.
var ErrNotFound = errors.New("block not found")

// =============================================================================

// Database manages the chain of blocks for the node. Writes happen from a
// single goroutine, the lock exists for concurrent readers.
type Database struct {
	mu         sync.RWMutex
	difficulty string
	blocks     []Block
}

// New constructs a chain holding only the genesis block.
func New(gen genesis.Genesis) *Database {
	db := Database{
		difficulty: gen.Difficulty,
	}
	db.genesis(gen)

	return &db
}

// genesis initializes the chain with the agreed genesis block.
func (db *Database) genesis(gen genesis.Genesis) {
	db.blocks = []Block{GenesisBlock(gen)}
}

// Difficulty returns the proof of work prefix for the chain.
func (db *Database) Difficulty() string {
	return db.difficulty
}

// TryAddBlock appends the block if it extends the latest block. The chain
// is left unchanged on failure.
func (db *Database) TryAddBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	latest := db.blocks[len(db.blocks)-1]
	if err := latest.ValidateNext(block, db.difficulty); err != nil {
		return fmt.Errorf("%w: blk[%d]: %w", ErrInvalidExtension, block.ID, err)
	}

	db.blocks = append(db.blocks, block)

	return nil
}

// IsValid checks every adjacent pair of blocks in the chain can extend
// one another. Chains with fewer than two blocks are valid.
func (db *Database) IsValid(chain []Block) bool {
	for i := 1; i < len(chain); i++ {
		if !CanExtend(chain[i-1], chain[i], db.difficulty) {
			return false
		}
	}

	return true
}

// Choose implements the fork-choice rule. When both chains are valid the
// longer chain wins and a tie keeps the local chain. When only one chain
// is valid, that chain is chosen regardless of length.
func (db *Database) Choose(local []Block, remote []Block) ([]Block, error) {
	useRemote, err := db.choose(local, remote)
	if err != nil {
		return nil, err
	}

	if useRemote {
		return remote, nil
	}
	return local, nil
}

// ResolveFork runs the fork-choice rule between the local chain and the
// remote chain and adopts the winner. It reports if the local chain was
// replaced.
func (db *Database) ResolveFork(remote []Block) (bool, error) {
	useRemote, err := db.choose(db.Copy(), remote)
	if err != nil {
		return false, err
	}

	if !useRemote {
		return false, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = make([]Block, len(remote))
	copy(db.blocks, remote)

	return true, nil
}

// choose reports if the remote chain wins over the local chain.
func (db *Database) choose(local []Block, remote []Block) (bool, error) {
	localValid := db.IsValid(local)
	remoteValid := db.IsValid(remote)

	switch {
	case localValid && remoteValid:
		return len(remote) > len(local), nil

	case localValid:
		return false, nil

	case remoteValid:
		return true, nil
	}

	return false, ErrBothChainsInvalid
}

// Copy returns a copy of the chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// LatestBlock returns the last block in the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks in the chain.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// BlockByID returns the block with the specified id. Ids are contiguous
// so the position is computed from the first block.
func (db *Database) BlockByID(id uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	first := db.blocks[0].ID
	if id < first || id-first >= uint64(len(db.blocks)) {
		return Block{}, ErrNotFound
	}

	return db.blocks[id-first], nil
}
