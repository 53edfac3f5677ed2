package database

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/digest"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
)

// ErrInvalidExtension is returned when a block can't extend the chain.
var ErrInvalidExtension = errors.New("invalid extension")

// progressInterval is the number of attempts between mining progress events.
const progressInterval = 100_000

// =============================================================================

// Block represents a single link in the chain. A block is never changed
// once it has been mined.
type Block struct {
	ID           uint64 `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash" validate:"required"`
	PreviousHash string `json:"previous_hash" validate:"required"`
	Data         string `json:"data"`
}

// GenesisBlock constructs the genesis block from the genesis information.
func GenesisBlock(gen genesis.Genesis) Block {
	return Block{
		ID:           gen.ID,
		Timestamp:    gen.Timestamp,
		Nonce:        gen.Nonce,
		Hash:         gen.Hash,
		PreviousHash: gen.PreviousHash,
		Data:         gen.Data,
	}
}

// ComputeHash recomputes the content hash from the fields of the block.
func (b Block) ComputeHash() string {
	return digest.Hex(b.ID, b.Timestamp, b.PreviousHash, b.Data, b.Nonce)
}

// ValidateNext checks that the next block can extend this block given
// the difficulty prefix. The error identifies the check that failed.
func (b Block) ValidateNext(next Block, difficulty string) error {
	if next.ID != b.ID+1 {
		return fmt.Errorf("block is not the next id, got %d, exp %d", next.ID, b.ID+1)
	}

	if next.PreviousHash != b.Hash {
		return fmt.Errorf("previous hash doesn't match our known parent, got %s, exp %s", next.PreviousHash, b.Hash)
	}

	if !digest.HasPrefix(next.Hash, difficulty) {
		return fmt.Errorf("block hash %s does not solve difficulty %q", next.Hash, difficulty)
	}

	if hash := next.ComputeHash(); hash != next.Hash {
		return fmt.Errorf("block hash doesn't match its content, got %s, exp %s", next.Hash, hash)
	}

	return nil
}

// CanExtend reports whether next is a valid successor of prev.
func CanExtend(prev Block, next Block, difficulty string) bool {
	return prev.ValidateNext(next, difficulty) == nil
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock  Block
	Data       string
	Difficulty string
	EvHandler  func(v string, args ...any)
}

// POW constructs a new Block on top of the previous block and performs the
// work to find a nonce that solves the proof of work puzzle. Only a
// cancelled context stops the search.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	nb := Block{
		ID:           args.PrevBlock.ID + 1,
		Timestamp:    time.Now().UTC().Unix(),
		PreviousHash: args.PrevBlock.Hash,
		Data:         args.Data,
	}

	if err := nb.performPOW(ctx, args.Difficulty, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, difficulty string, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]", b.ID)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.ID)

	// Every attempt picks a random nonce so nodes mining on the same parent
	// don't walk the same sequence.
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return fmt.Errorf("seeding nonce source: %w", err)
	}
	rng := rand.New(rand.NewChaCha8(seed))

	var attempts uint64
	for {
		if attempts%progressInterval == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)

			if ctx.Err() != nil {
				ev("database: PerformPOW: MINING: CANCELLED")
				return ctx.Err()
			}
		}
		attempts++

		b.Nonce = rng.Uint64()

		hash := digest.Sum(b.ID, b.Timestamp, b.PreviousHash, b.Data, b.Nonce)
		if !digest.IsSolved(hash, difficulty) {
			continue
		}

		b.Hash = b.ComputeHash()

		ev("database: PerformPOW: MINING: SOLVED: nonce[%d]: prevBlk[%s]: newBlk[%s]", b.Nonce, b.PreviousHash, b.Hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}
