// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/floodchain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/floodchain/foundation/blockchain/state"
	"github.com/ardanlabs/floodchain/foundation/events"
	"github.com/ardanlabs/floodchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/chain/latest", pbl.LatestBlock)
	app.Handle(http.MethodGet, version, "/chain/:id", pbl.BlockByID)
	app.Handle(http.MethodPost, version, "/blocks", pbl.SubmitBlock)
}
