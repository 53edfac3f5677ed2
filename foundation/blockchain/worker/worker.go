// Package worker implements the node's event loop: operator commands,
// gossip from peers, peer discovery and mining all funnel into one
// goroutine that owns the chain.
package worker

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/floodchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/floodchain/foundation/blockchain/state"
)

// Set of defaults used when the configuration leaves a value empty.
const (
	defaultSyncDelay      = time.Second
	defaultPeerTTL        = 2 * time.Minute
	defaultExpireInterval = 30 * time.Second
)

// maxResponses is the size of the outbound chain response queue. A
// response that doesn't fit is dropped.
const maxResponses = 100

// maxCommands is the number of operator commands that can be waiting on
// the loop.
const maxCommands = 100

// publishTimeout bounds every publish the loop performs.
const publishTimeout = 5 * time.Second

// =============================================================================

// Config represents the configuration required to run the worker.
type Config struct {
	Messages       <-chan p2p.Message
	Discovered     <-chan p2p.Discovery
	SyncDelay      time.Duration
	PeerTTL        time.Duration
	ExpireInterval time.Duration
	Output         io.Writer
	Shutdown       chan<- os.Signal
	EvHandler      state.EventHandler
}

// Worker manages the event loop and the POW workflow for the node.
type Worker struct {
	state     *state.State
	cfg       Config
	wg        sync.WaitGroup
	shut      chan struct{}
	commands  chan Command
	responses chan gossip.ChainResponse
	mined     chan minedResult
	shutOnce  sync.Once
	stopped   atomic.Bool
	evHandler state.EventHandler

	// Owned by the loop goroutine.
	pending []string
	job     *miningJob
	jobSeq  uint64
}

// Run creates a worker, registers the worker with the state package, and
// starts the event loop.
func Run(st *state.State, cfg Config) *Worker {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	if cfg.SyncDelay <= 0 {
		cfg.SyncDelay = defaultSyncDelay
	}
	if cfg.PeerTTL <= 0 {
		cfg.PeerTTL = defaultPeerTTL
	}
	if cfg.ExpireInterval <= 0 {
		cfg.ExpireInterval = defaultExpireInterval
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	w := Worker{
		state:     st,
		cfg:       cfg,
		shut:      make(chan struct{}),
		commands:  make(chan Command, maxCommands),
		responses: make(chan gossip.ChainResponse, maxResponses),
		mined:     make(chan minedResult),
		evHandler: ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// We don't want to return until we know the loop is up and running.
	hasStarted := make(chan bool)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.eventLoop()
	}()

	<-hasStarted

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: terminate goroutines")
	w.shutOnce.Do(func() { close(w.shut) })
	w.wg.Wait()
}

// Running reports whether the event loop is still handling events. It
// turns false on shutdown or after a fatal error stopped the loop.
func (w *Worker) Running() bool {
	return !w.stopped.Load() && !w.isShutdown()
}

// SignalCreateBlock queues the data to be mined into a new block. It
// reports false when the command can't be queued.
func (w *Worker) SignalCreateBlock(data string) bool {
	return w.SignalCommand(Command{Kind: CreateBlock, Data: data})
}

// =============================================================================

// SignalCommand hands an operator command to the event loop. If the
// command queue is full the command is dropped and false is returned.
func (w *Worker) SignalCommand(cmd Command) bool {
	if w.isShutdown() {
		return false
	}

	select {
	case w.commands <- cmd:
		w.evHandler("worker: SignalCommand: %s signaled", cmd.Kind)
		return true
	default:
		w.evHandler("worker: SignalCommand: queue full, %s dropped", cmd.Kind)
		return false
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// publishContext bounds a single publish to the network.
func (w *Worker) publishContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), publishTimeout)
}
