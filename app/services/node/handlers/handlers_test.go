package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/floodchain/app/services/node/handlers"
	"github.com/ardanlabs/floodchain/business/web/errs"
	"github.com/ardanlabs/floodchain/foundation/blockchain/database"
	"github.com/ardanlabs/floodchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/floodchain/foundation/blockchain/state"
	"github.com/ardanlabs/floodchain/foundation/blockchain/worker"
	"github.com/ardanlabs/floodchain/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// network accepts every publish and reports no connections.
type network struct{}

func (network) Publish(ctx context.Context, topic string, data []byte) error { return nil }
func (network) Connected(id string) bool                                     { return false }

func newApp(t *testing.T) (http.Handler, *state.State) {
	st, err := state.New(state.Config{
		Self:    "peerSelf",
		Genesis: genesis.Default(),
		Network: network{},
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}

	worker.Run(st, worker.Config{SyncDelay: time.Hour})
	t.Cleanup(func() { st.Shutdown() })

	app := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Evts:     events.New(),
	})

	return app, st
}

func call(app http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	return w
}

// =============================================================================

func Test_Chain(t *testing.T) {
	app, _ := newApp(t)
	gen := database.GenesisBlock(genesis.Default())

	t.Log("Given the need to read the chain over the API.")
	{
		t.Logf("\tTest 0:\tWhen asking for the full chain.")
		{
			w := call(app, http.MethodGet, "/v1/chain", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 200 for the response : %v", failed, w.Code)
			}

			var chain []database.Block
			if err := json.NewDecoder(w.Body).Decode(&chain); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to unmarshal the response : %v", failed, err)
			}

			if len(chain) != 1 || chain[0] != gen {
				t.Fatalf("\t%s\tTest 0:\tShould get back the genesis only chain.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the genesis only chain.", success)
		}

		t.Logf("\tTest 1:\tWhen asking for the latest block.")
		{
			w := call(app, http.MethodGet, "/v1/chain/latest", "")

			var block database.Block
			if err := json.NewDecoder(w.Body).Decode(&block); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to unmarshal the response : %v", failed, err)
			}

			if w.Code != http.StatusOK || block != gen {
				t.Fatalf("\t%s\tTest 1:\tShould get back the genesis block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould get back the genesis block.", success)
		}
	}
}

func Test_BlockByID(t *testing.T) {
	app, _ := newApp(t)

	type table struct {
		name       string
		path       string
		statusCode int
	}

	tt := []table{
		{name: "genesis", path: "/v1/chain/0", statusCode: http.StatusOK},
		{name: "missing", path: "/v1/chain/9", statusCode: http.StatusNotFound},
		{name: "not-a-number", path: "/v1/chain/abc", statusCode: http.StatusBadRequest},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			w := call(app, http.MethodGet, tst.path, "")
			if w.Code != tst.statusCode {
				t.Fatalf("Test %s:\tShould receive a status code of %d, got %d", tst.name, tst.statusCode, w.Code)
			}

			if tst.statusCode != http.StatusOK {
				var er errs.Response
				if err := json.NewDecoder(w.Body).Decode(&er); err != nil || er.Error == "" {
					t.Fatalf("Test %s:\tShould get back an error document.", tst.name)
				}
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_SubmitBlock(t *testing.T) {
	app, st := newApp(t)

	t.Log("Given the need to queue block data over the API.")
	{
		t.Logf("\tTest 0:\tWhen the data is larger than 4096 bytes.")
		{

			// 2049 characters, 4098 bytes.
			w := call(app, http.MethodPost, "/v1/blocks", `{"data":"`+strings.Repeat("é", 2049)+`"}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 400 for the response : %v", failed, w.Code)
			}

			var er errs.Response
			if err := json.NewDecoder(w.Body).Decode(&er); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to unmarshal the response : %v", failed, err)
			}

			if _, exists := er.Fields["data"]; !exists {
				t.Fatalf("\t%s\tTest 0:\tShould name the data field in the error: %+v", failed, er)
			}
			t.Logf("\t%s\tTest 0:\tShould name the data field in the error.", success)
		}

		t.Logf("\tTest 1:\tWhen the document has unknown fields.")
		{
			w := call(app, http.MethodPost, "/v1/blocks", `{"data":"x","nonce":1}`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 400 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a status code of 400 for the response.", success)
		}

		t.Logf("\tTest 2:\tWhen the data is valid.")
		{
			w := call(app, http.MethodPost, "/v1/blocks", `{"data":"hello"}`)
			if w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 2:\tShould receive a status code of 202 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould receive a status code of 202 for the response.", success)

			deadline := time.Now().Add(10 * time.Second)
			for st.RetrieveStatus().ChainLength != 2 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			if st.RetrieveLatestBlock().Data != "hello" {
				t.Fatalf("\t%s\tTest 2:\tShould mine the data into the chain.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould mine the data into the chain.", success)
		}

		t.Logf("\tTest 3:\tWhen the data is empty.")
		{
			w := call(app, http.MethodPost, "/v1/blocks", `{"data":""}`)
			if w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 3:\tShould receive a status code of 202 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 3:\tShould receive a status code of 202 for the response.", success)

			deadline := time.Now().Add(10 * time.Second)
			for st.RetrieveStatus().ChainLength != 3 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			if st.RetrieveStatus().ChainLength != 3 || st.RetrieveLatestBlock().Data != "" {
				t.Fatalf("\t%s\tTest 3:\tShould mine the empty payload into the chain.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould mine the empty payload into the chain.", success)
		}

		t.Logf("\tTest 4:\tWhen the data is exactly 4096 bytes of multi byte characters.")
		{
			w := call(app, http.MethodPost, "/v1/blocks", `{"data":"`+strings.Repeat("é", 2048)+`"}`)
			if w.Code != http.StatusAccepted {
				t.Fatalf("\t%s\tTest 4:\tShould receive a status code of 202 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 4:\tShould receive a status code of 202 for the response.", success)
		}
	}
}

func Test_Status(t *testing.T) {
	app, _ := newApp(t)

	w := call(app, http.MethodGet, "/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Should receive a status code of 200, got %d", w.Code)
	}

	var status state.Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Should be able to unmarshal the response: %s", err)
	}

	if status.PeerID != "peerSelf" || status.ChainLength != 1 || status.Difficulty != "00" {
		t.Fatalf("Should describe the node: %+v", status)
	}

	w = call(app, http.MethodGet, "/v1/peers", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":0`) {
		t.Fatalf("Should list no peers: %s", w.Body.String())
	}
}

func Test_Readiness(t *testing.T) {
	_, st := newApp(t)
	debug := handlers.DebugMux("test", zap.NewNop().Sugar(), st)

	t.Log("Given the need to report when the node can serve traffic.")
	{
		t.Logf("\tTest 0:\tWhen the event loop is running.")
		{
			w := call(debug, http.MethodGet, "/debug/readiness", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 200 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 200 for the response.", success)
		}

		t.Logf("\tTest 1:\tWhen the event loop has stopped.")
		{
			st.Shutdown()

			w := call(debug, http.MethodGet, "/debug/readiness", "")
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 503 for the response : %v", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a status code of 503 for the response.", success)
		}
	}
}
