package worker

// Sync asks every visible peer for its chain. It runs once, shortly after
// the node starts, so a new node catches up with the network. One request
// is broadcast per known peer since a request only names a single peer to
// answer it. With no known peers nothing is sent.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx, cancel := w.publishContext()
	defer cancel()

	if sent := w.state.NetRequestPeerChains(ctx); sent == 0 {
		w.evHandler("worker: sync: no peers visible, nothing requested")
	}
}
