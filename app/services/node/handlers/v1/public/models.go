package public

import (
	"github.com/ardanlabs/floodchain/business/sys/validate"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
)

// NewBlock is the data an operator wants mined into the next block. The
// data may be empty.
type NewBlock struct {
	Data string `json:"data" validate:"maxbytes=4096"`
}

// Validate checks the data model has valid information.
func (nb NewBlock) Validate() error {
	return validate.Check(nb)
}

type peers struct {
	Count int         `json:"count"`
	Peers []peer.Peer `json:"peers"`
}

type queued struct {
	Status string `json:"status"`
	Data   string `json:"data"`
}
