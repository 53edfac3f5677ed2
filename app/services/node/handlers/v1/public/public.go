// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/floodchain/business/web/errs"
	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/state"
	"github.com/ardanlabs/floodchain/foundation/events"
	"github.com/ardanlabs/floodchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitBlock queues data to be mined into a new block.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb NewBlock
	if err := web.Decode(r, &nb); err != nil {
		return errs.BadRequest(err)
	}
	nb.Data = strings.ToValidUTF8(nb.Data, "\uFFFD")

	if err := nb.Validate(); err != nil {
		return err
	}

	h.Log.Infow("submit block", "traceid", v.TraceID, "size", len(nb.Data))

	if err := h.State.SubmitBlockData(nb.Data); err != nil {
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}

	resp := queued{
		Status: "queued for mining",
		Data:   nb.Data,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// Chain returns the full chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveChain(), http.StatusOK)
}

// LatestBlock returns the block at the tail of the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveLatestBlock(), http.StatusOK)
}

// BlockByID returns the block with the specified id.
func (h Handlers) BlockByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseUint(web.Param(r, "id"), 10, 64)
	if err != nil {
		return errs.BadRequest(fmt.Errorf("invalid block id %q", web.Param(r, "id")))
	}

	block, err := h.State.QueryBlockByID(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NotFound(err)
		}
		return err
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Peers returns the peers this node currently knows about.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	known := h.State.RetrieveKnownPeers()

	resp := peers{
		Count: len(known),
		Peers: known,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveStatus(), http.StatusOK)
}
