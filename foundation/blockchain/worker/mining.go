package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
)

// miningJob is the mining operation in flight. Only one runs at a time.
type miningJob struct {
	seq    uint64
	data   string
	tip    string
	cancel context.CancelFunc
}

// minedResult is what a mining job reports back to the loop.
type minedResult struct {
	seq   uint64
	block database.Block
	err   error
}

// startMining starts a mining job for the oldest pending data on top of
// the current tail. Nothing happens if a job is running or nothing is
// pending.
func (w *Worker) startMining() {
	if w.job != nil || len(w.pending) == 0 || w.isShutdown() {
		return
	}

	tail := w.state.RetrieveLatestBlock()
	ctx, cancel := context.WithCancel(context.Background())

	w.jobSeq++
	job := miningJob{
		seq:    w.jobSeq,
		data:   w.pending[0],
		tip:    tail.Hash,
		cancel: cancel,
	}
	w.job = &job

	w.evHandler("worker: startMining: MINING: started: job[%d]: blk[%d]", job.seq, tail.ID+1)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()

		t := time.Now()
		block, err := w.state.MineNextBlock(ctx, tail, job.data)
		w.evHandler("worker: startMining: MINING: job[%d]: mining duration[%v]", job.seq, time.Since(t))

		select {
		case w.mined <- minedResult{seq: job.seq, block: block, err: err}:
		case <-w.shut:
		}
	}()
}

// runMined appends a block mined by this node. A block that went stale
// while it was mined is mined again on the new tail.
func (w *Worker) runMined(res minedResult) {
	if w.job == nil || res.seq != w.job.seq {
		w.evHandler("worker: runMined: MINING: job[%d]: result of a cancelled job ignored", res.seq)
		return
	}
	w.job = nil

	// There is always another job to look at once this result is handled.
	defer w.startMining()

	if res.err != nil {
		w.evHandler("worker: runMined: MINING: job[%d]: ERROR: %s", res.seq, res.err)
		return
	}

	ctx, cancel := w.publishContext()
	defer cancel()

	err := w.state.AddLocalBlock(ctx, res.block)
	switch {
	case errors.Is(err, database.ErrInvalidExtension):
		w.evHandler("worker: runMined: MINING: job[%d]: stale block, mining again: %s", res.seq, err)
		return

	case err != nil:
		w.evHandler("worker: runMined: MINING: job[%d]: blk[%d]: WARNING: %s", res.seq, res.block.ID, err)
	}

	w.evHandler("worker: runMined: MINING: job[%d]: blk[%d]: added", res.seq, res.block.ID)
	w.pending = w.pending[1:]
}

// tailChanged restarts the mining job when a peer moved the tail it was
// mining on. The same data is mined again on the new tail.
func (w *Worker) tailChanged() {
	if w.job == nil || w.job.tip == w.state.RetrieveLatestBlock().Hash {
		return
	}

	w.evHandler("worker: tailChanged: MINING: CANCEL: job[%d]: tail moved", w.job.seq)
	w.cancelMining()
	w.startMining()
}

// cancelMining stops the job in flight. Its result will be ignored.
func (w *Worker) cancelMining() {
	if w.job == nil {
		return
	}

	w.job.cancel()
	w.job = nil
}
