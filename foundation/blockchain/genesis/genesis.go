// Package genesis maintains access to the genesis information every node
// must agree on.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Genesis represents the genesis block and the consensus settings that
// come with it.
type Genesis struct {
	Difficulty   string `json:"difficulty"` // Binary prefix a block hash must start with.
	ID           uint64 `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"` // Sentinel value, never recomputed.
	PreviousHash string `json:"previous_hash"`
	Data         string `json:"data"`
}

// Default returns the genesis shared by every node on the network.
func Default() Genesis {
	return Genesis{
		Difficulty:   "00",
		ID:           0,
		Timestamp:    1640995200,
		Nonce:        2836,
		Hash:         "0000f816a87f806bb0073dcf026a64fb40c946b5abee2573702828694d5b4c43",
		PreviousHash: "genesis",
		Data:         "genesis!",
	}
}

// =============================================================================

// Load opens and consumes the genesis file. An empty path provides the
// default genesis.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis file: %w", err)
	}

	if err := genesis.validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// validate checks the genesis values are usable by the consensus rules.
func (g Genesis) validate() error {
	if g.Hash == "" {
		return errors.New("genesis hash is missing")
	}

	if strings.Trim(g.Difficulty, "01") != "" {
		return fmt.Errorf("genesis difficulty %q must only contain binary digits", g.Difficulty)
	}

	if g.ID != 0 {
		return fmt.Errorf("genesis id must be 0, got %d", g.ID)
	}

	return nil
}
