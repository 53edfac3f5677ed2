package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/digest"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_POW(t *testing.T) {
	gen := genesis.Default()
	prev := database.GenesisBlock(gen)

	t.Log("Given the need to mine blocks.")
	{
		for i := range 5 {
			t.Logf("\tTest %d:\tWhen mining a block on the genesis block.", i)
			{
				block, err := database.POW(context.Background(), database.POWArgs{
					PrevBlock:  prev,
					Data:       fmt.Sprintf("payload %d", i),
					Difficulty: gen.Difficulty,
				})
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, i, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, i)

				if !digest.HasPrefix(block.Hash, gen.Difficulty) {
					t.Fatalf("\t%s\tTest %d:\tShould have a hash solving the difficulty: %s", failed, i, block.Hash)
				}
				t.Logf("\t%s\tTest %d:\tShould have a hash solving the difficulty.", success, i)

				if block.ComputeHash() != block.Hash {
					t.Fatalf("\t%s\tTest %d:\tShould reproduce the hash from the fields.", failed, i)
				}
				t.Logf("\t%s\tTest %d:\tShould reproduce the hash from the fields.", success, i)

				if err := prev.ValidateNext(block, gen.Difficulty); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould extend the genesis block: %v", failed, i, err)
				}
				t.Logf("\t%s\tTest %d:\tShould extend the genesis block.", success, i)
			}
		}
	}
}

func Test_POWCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A prefix of 256 zero bits can't be solved so only the context can
	// stop this search.
	_, err := database.POW(ctx, database.POWArgs{
		PrevBlock:  database.GenesisBlock(genesis.Default()),
		Difficulty: fmt.Sprintf("%0256d", 0),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Should get a cancel error, got %v", err)
	}
}

func Test_TryAddBlock(t *testing.T) {
	gen := genesis.Default()
	good := mine(t, database.GenesisBlock(gen), "hello")

	tampered := good
	tampered.Data = "changed"

	badPrev := good
	badPrev.PreviousHash = "00000000000000000000000000000000000000000000000000000000deadbeef"

	badID := good
	badID.ID = 7

	type table struct {
		name   string
		block  database.Block
		fail   bool
		length int
	}

	tt := []table{
		{name: "valid", block: good, length: 2},
		{name: "unknown-parent", block: badPrev, fail: true, length: 1},
		{name: "tampered-data", block: tampered, fail: true, length: 1},
		{name: "wrong-id", block: badID, fail: true, length: 1},
	}

	t.Log("Given the need to extend the chain.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen adding a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					db := database.New(gen)

					err := db.TryAddBlock(tst.block)
					switch tst.fail {
					case true:
						if !errors.Is(err, database.ErrInvalidExtension) {
							t.Fatalf("\t%s\tTest %d:\tShould fail with an invalid extension: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould fail with an invalid extension.", success, testID)

					default:
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to add the block: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to add the block.", success, testID)
					}

					if db.Length() != tst.length {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, db.Length())
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.length)
						t.Fatalf("\t%s\tTest %d:\tShould have the right chain length.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have the right chain length.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_IsValid(t *testing.T) {
	gen := genesis.Default()
	db := database.New(gen)

	chain := mineChain(t, gen, 4, "valid")

	broken := make([]database.Block, len(chain))
	copy(broken, chain)
	broken[2].Data = "rewritten history"

	type table struct {
		name  string
		chain []database.Block
		exp   bool
	}

	tt := []table{
		{name: "empty", chain: nil, exp: true},
		{name: "genesis-only", chain: chain[:1], exp: true},
		{name: "valid", chain: chain, exp: true},
		{name: "broken", chain: broken, exp: false},
		{name: "gap", chain: []database.Block{chain[0], chain[2]}, exp: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if got := db.IsValid(tst.chain); got != tst.exp {
				t.Fatalf("\t%s\tTest %s:\tShould get %v, got %v.", failed, tst.name, tst.exp, got)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Choose(t *testing.T) {
	gen := genesis.Default()
	db := database.New(gen)

	short := mineChain(t, gen, 3, "short")
	long := mineChain(t, gen, 5, "long")
	same := mineChain(t, gen, 3, "same")

	invalidLong := make([]database.Block, len(long))
	copy(invalidLong, long)
	invalidLong[1].Nonce++

	invalidShort := make([]database.Block, len(short))
	copy(invalidShort, short)
	invalidShort[2].PreviousHash = "genesis"

	type table struct {
		name   string
		local  []database.Block
		remote []database.Block
		exp    []database.Block
		fail   bool
	}

	tt := []table{
		{name: "tie-keeps-local", local: short, remote: same, exp: short},
		{name: "longer-remote-wins", local: short, remote: long, exp: long},
		{name: "longer-local-wins", local: long, remote: short, exp: long},
		{name: "invalid-remote", local: short, remote: invalidLong, exp: short},
		{name: "invalid-local", local: invalidLong, remote: short, exp: short},
		{name: "both-invalid", local: invalidShort, remote: invalidLong, fail: true},
	}

	t.Log("Given the need to choose between competing chains.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
			{
				f := func(t *testing.T) {
					chosen, err := db.Choose(tst.local, tst.remote)
					if tst.fail {
						if !errors.Is(err, database.ErrBothChainsInvalid) {
							t.Fatalf("\t%s\tTest %d:\tShould fail with both chains invalid: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould fail with both chains invalid.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to choose a chain: %v", failed, testID, err)
					}

					if !equal(chosen, tst.exp) {
						t.Fatalf("\t%s\tTest %d:\tShould choose the right chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould choose the right chain.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ResolveFork(t *testing.T) {
	gen := genesis.Default()

	t.Log("Given the need to adopt a longer valid chain.")
	{
		t.Logf("\tTest 0:\tWhen the local chain has 3 blocks and the remote chain has 5.")
		{
			db := database.New(gen)
			for _, block := range mineChain(t, gen, 3, "local")[1:] {
				if err := db.TryAddBlock(block); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to build the local chain: %v", failed, err)
				}
			}

			remote := mineChain(t, gen, 5, "remote")

			replaced, err := db.ResolveFork(remote)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to resolve the fork: %v", failed, err)
			}

			if !replaced {
				t.Fatalf("\t%s\tTest 0:\tShould replace the local chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould replace the local chain.", success)

			if !equal(db.Copy(), remote) {
				t.Fatalf("\t%s\tTest 0:\tShould hold the remote chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hold the remote chain.", success)

			if db.LatestBlock().ID != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould have block 4 as the latest block, got %d.", failed, db.LatestBlock().ID)
			}
			t.Logf("\t%s\tTest 0:\tShould have block 4 as the latest block.", success)
		}

		t.Logf("\tTest 1:\tWhen the remote chain is not longer.")
		{
			db := database.New(gen)
			remote := mineChain(t, gen, 1, "remote")

			replaced, err := db.ResolveFork(remote)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to resolve the fork: %v", failed, err)
			}

			if replaced {
				t.Fatalf("\t%s\tTest 1:\tShould keep the local chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the local chain.", success)
		}
	}
}

func Test_RoundTrip(t *testing.T) {
	gen := genesis.Default()
	prev := database.GenesisBlock(gen)
	block := mine(t, prev, `quotes " and <tags>`+"\u2028 separators \u2029")

	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("Should be able to marshal the block: %s", err)
	}

	var got database.Block
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Should be able to unmarshal the block: %s", err)
	}

	if got != block {
		t.Logf("got: %+v", got)
		t.Logf("exp: %+v", block)
		t.Fatalf("Should get back the same block.")
	}

	if !database.CanExtend(prev, got, gen.Difficulty) {
		t.Fatalf("Should still extend the genesis block after the round trip.")
	}
}

func Test_BlockByID(t *testing.T) {
	gen := genesis.Default()
	db := database.New(gen)

	block := mine(t, db.LatestBlock(), "first")
	if err := db.TryAddBlock(block); err != nil {
		t.Fatalf("Should be able to add the block: %s", err)
	}

	got, err := db.BlockByID(1)
	if err != nil {
		t.Fatalf("Should be able to find block 1: %s", err)
	}
	if got != block {
		t.Fatalf("Should get back block 1.")
	}

	if _, err := db.BlockByID(2); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should not find block 2, got %v", err)
	}
}

// =============================================================================

func mine(t *testing.T, prev database.Block, data string) database.Block {
	t.Helper()

	block, err := database.POW(context.Background(), database.POWArgs{
		PrevBlock:  prev,
		Data:       data,
		Difficulty: genesis.Default().Difficulty,
	})
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	return block
}

// mineChain builds a valid chain of the specified length including genesis.
func mineChain(t *testing.T, gen genesis.Genesis, length int, tag string) []database.Block {
	t.Helper()

	chain := []database.Block{database.GenesisBlock(gen)}
	for i := 1; i < length; i++ {
		chain = append(chain, mine(t, chain[i-1], fmt.Sprintf("%s-%d", tag, i)))
	}

	return chain
}

func equal(a, b []database.Block) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
