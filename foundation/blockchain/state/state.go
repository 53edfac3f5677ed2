// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
	"github.com/ardanlabs/floodchain/foundation/events"
)

// Set of event kinds sent to the events fan-out.
const (
	EventBlockAdded    = "block_added"
	EventChainReplaced = "chain_replaced"
	EventPeerAdded     = "peer_added"
	EventPeerExpired   = "peer_expired"
)

// ErrQueueFull is returned when block data can't be queued for mining.
var ErrQueueFull = errors.New("mining queue is full")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks and gossip.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and running the node's event loop.
type Worker interface {
	Shutdown()
	SignalCreateBlock(data string) bool
	Running() bool
}

// Network interface represents the behavior required from the transport
// to send gossip and confirm peers are still reachable.
type Network interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Connected(id string) bool
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Self       string
	Topics     gossip.Topics
	Genesis    genesis.Genesis
	Network    Network
	KnownPeers *peer.PeerSet
	Events     *events.Events
	EvHandler  EventHandler
}

// State manages the blockchain database.
type State struct {
	self      string
	topics    gossip.Topics
	genesis   genesis.Genesis
	network   Network
	evHandler EventHandler
	events    *events.Events

	knownPeers *peer.PeerSet
	db         *database.Database

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {
	if cfg.Self == "" {
		return nil, errors.New("node identity is required")
	}

	if cfg.Network == nil {
		return nil, errors.New("network is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	topics := cfg.Topics
	if topics == (gossip.Topics{}) {
		topics = gossip.DefaultTopics()
	}

	state := State{
		self:      cfg.Self,
		topics:    topics,
		genesis:   cfg.Genesis,
		network:   cfg.Network,
		evHandler: ev,
		events:    cfg.Events,

		knownPeers: knownPeers,
		db:         database.New(cfg.Genesis),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// SubmitBlockData queues the data to be mined into a new block.
func (s *State) SubmitBlockData(data string) error {
	if s.Worker == nil || !s.Worker.SignalCreateBlock(data) {
		return ErrQueueFull
	}

	return nil
}
