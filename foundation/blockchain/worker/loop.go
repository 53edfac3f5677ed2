package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/floodchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
)

// CommandKind identifies an operator command.
type CommandKind string

// Set of operator commands the loop understands.
const (
	CreateBlock CommandKind = "create_block"
	ListPeers   CommandKind = "list_peers"
	ListChain   CommandKind = "list_chain"
)

// Command is an operator request handed to the event loop.
type Command struct {
	Kind CommandKind
	Data string
}

// =============================================================================

// eventLoop is the only goroutine that changes the chain or the peer set.
// Whichever source is ready first is handled first.
func (w *Worker) eventLoop() {
	w.evHandler("worker: eventLoop: G started")
	defer w.evHandler("worker: eventLoop: G completed")
	defer w.stopped.Store(true)

	syncTimer := time.NewTimer(w.cfg.SyncDelay)
	defer syncTimer.Stop()

	expire := time.NewTicker(w.cfg.ExpireInterval)
	defer expire.Stop()

	defer w.cancelMining()

	messages := w.cfg.Messages
	discovered := w.cfg.Discovered

	for {
		select {
		case cmd := <-w.commands:
			w.runCommand(cmd)

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if !w.runMessage(msg) {
				return
			}

		case d, ok := <-discovered:
			if !ok {
				discovered = nil
				continue
			}
			w.state.AddKnownPeer(peer.New(d.ID, d.Addrs, time.Now()))

		case resp := <-w.responses:
			w.sendResponse(resp)

		case res := <-w.mined:
			w.runMined(res)

		case <-syncTimer.C:
			w.Sync()

		case <-expire.C:
			w.state.ExpirePeers(time.Now(), w.cfg.PeerTTL)

		case <-w.shut:
			w.evHandler("worker: eventLoop: received shut signal")
			return
		}
	}
}

// runCommand executes an operator command.
func (w *Worker) runCommand(cmd Command) {
	w.evHandler("worker: runCommand: %s", cmd.Kind)

	switch cmd.Kind {
	case CreateBlock:
		w.pending = append(w.pending, cmd.Data)
		w.evHandler("worker: runCommand: block data queued: pending[%d]", len(w.pending))
		w.startMining()

	case ListPeers:
		for _, pr := range w.state.RetrieveKnownPeers() {
			fmt.Fprintln(w.cfg.Output, pr.ID)
		}

	case ListChain:
		data, err := json.MarshalIndent(w.state.RetrieveChain(), "", "  ")
		if err != nil {
			w.evHandler("worker: runCommand: ERROR: %s", err)
			return
		}
		fmt.Fprintln(w.cfg.Output, string(data))

	default:
		w.evHandler("worker: runCommand: unknown command %q", cmd.Kind)
	}
}

// runMessage applies a message from a peer. It returns false when the
// error is fatal and the loop must stop.
func (w *Worker) runMessage(msg p2p.Message) bool {
	tip := w.state.RetrieveLatestBlock().Hash

	resp, err := w.state.ProcessMessage(msg.From, msg.Data)
	switch {
	case errors.Is(err, database.ErrBothChainsInvalid):
		w.evHandler("worker: runMessage: peer[%s]: FATAL: %s", msg.From, err)
		w.signalShutdown()
		return false

	case err != nil:
		w.evHandler("worker: runMessage: peer[%s]: topic[%s]: WARNING: %s", msg.From, msg.Topic, err)
	}

	if resp != nil {
		w.queueResponse(*resp)
	}

	if w.state.RetrieveLatestBlock().Hash != tip {
		w.tailChanged()
	}

	return true
}

// queueResponse places a chain response on the outbound queue. A full
// queue drops the response.
func (w *Worker) queueResponse(resp gossip.ChainResponse) {
	select {
	case w.responses <- resp:
		w.evHandler("worker: queueResponse: receiver[%s]: queued", resp.Receiver)
	default:
		w.evHandler("worker: queueResponse: receiver[%s]: WARNING: queue full, response dropped", resp.Receiver)
	}
}

// sendResponse publishes a queued chain response.
func (w *Worker) sendResponse(resp gossip.ChainResponse) {
	ctx, cancel := w.publishContext()
	defer cancel()

	if err := w.state.NetSendChainResponse(ctx, resp); err != nil {
		w.evHandler("worker: sendResponse: receiver[%s]: WARNING: %s", resp.Receiver, err)
	}
}

// signalShutdown asks the process to shut down.
func (w *Worker) signalShutdown() {
	if w.cfg.Shutdown == nil {
		return
	}

	select {
	case w.cfg.Shutdown <- syscall.SIGTERM:
	default:
	}
}
