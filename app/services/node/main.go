package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/floodchain/app/services/node/console"
	"github.com/ardanlabs/floodchain/app/services/node/handlers"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/floodchain/foundation/blockchain/gossip"
	"github.com/ardanlabs/floodchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/floodchain/foundation/blockchain/peer"
	"github.com/ardanlabs/floodchain/foundation/blockchain/state"
	"github.com/ardanlabs/floodchain/foundation/blockchain/worker"
	"github.com/ardanlabs/floodchain/foundation/events"
	"github.com/ardanlabs/floodchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		P2P struct {
			ListenAddrs      []string `conf:"default:/ip4/0.0.0.0/tcp/0"`
			ServiceTag       string   `conf:"default:floodchain"`
			ChainsTopic      string   `conf:"default:chains"`
			BlocksTopic      string   `conf:"default:blocks"`
			DisableDiscovery bool     `conf:"default:false"`
		}
		State struct {
			GenesisFile    string
			SyncDelay      time.Duration `conf:"default:1s"`
			PeerTTL        time.Duration `conf:"default:2m"`
			ExpireInterval time.Duration `conf:"default:30s"`
			Console        bool          `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "floodchain proof of work node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send("log", s)
	}

	// =========================================================================
	// Network Support

	// The identity lives as long as the process. It is never persisted.
	key, err := p2p.GenerateIdentity()
	if err != nil {
		return err
	}

	topics := gossip.Topics{
		Chains: cfg.P2P.ChainsTopic,
		Blocks: cfg.P2P.BlocksTopic,
	}

	net, err := p2p.New(p2p.Config{
		Key:              key,
		ListenAddrs:      cfg.P2P.ListenAddrs,
		ServiceTag:       cfg.P2P.ServiceTag,
		Topics:           []string{topics.Chains, topics.Blocks},
		DisableDiscovery: cfg.P2P.DisableDiscovery,
		EvHandler:        ev,
	})
	if err != nil {
		return fmt.Errorf("starting network: %w", err)
	}
	defer net.Shutdown()

	log.Infow("startup", "status", "network started", "peer", net.ID(), "addrs", net.Addrs())

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.State.GenesisFile)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		Self:       net.ID(),
		Topics:     topics,
		Genesis:    gen,
		Network:    net,
		KnownPeers: peer.NewPeerSet(),
		Events:     evts,
		EvHandler:  ev,
	})
	if err != nil {
		return err
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it. The worker
	// uses it as well when the chain reaches a state it can't recover from.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// The worker package runs the event loop that owns the chain and the
	// mining workflow. The worker will register itself with the state.
	w := worker.Run(st, worker.Config{
		Messages:       net.Messages(),
		Discovered:     net.Discovered(),
		SyncDelay:      cfg.State.SyncDelay,
		PeerTTL:        cfg.State.PeerTTL,
		ExpireInterval: cfg.State.ExpireInterval,
		Output:         os.Stdout,
		Shutdown:       shutdown,
		EvHandler:      ev,
	})
	defer st.Shutdown()

	// Operator commands typed on stdin. Reading can't be interrupted, so this
	// goroutine is left behind at shutdown.
	if cfg.State.Console {
		go func() {
			if err := console.Run(os.Stdin, w, ev); err != nil {
				log.Errorw("console", "ERROR", err)
			}
			log.Infow("console", "status", "input closed")
		}()
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
