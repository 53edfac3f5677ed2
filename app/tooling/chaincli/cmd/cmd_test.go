package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--url", srv.URL))

	err := rootCmd.Execute()
	return out.String(), err
}

func Test_Create(t *testing.T) {
	var got struct {
		Data string `json:"data"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/blocks" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"queued for mining"}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "create", "b", "hello", "world")
	if err != nil {
		t.Fatalf("Should be able to create a block: %s", err)
	}

	if got.Data != "hello world" {
		t.Fatalf("Should send the remaining arguments as the data, got %q", got.Data)
	}

	if !strings.Contains(out, "queued for mining") {
		t.Fatalf("Should print the node's answer, got %q", out)
	}

	if _, err := execute(t, srv, "create", "b"); err != nil || got.Data != "" {
		t.Fatalf("Should be able to create a block with empty data: %v", err)
	}

	if _, err := execute(t, srv, "create", "x", "hello"); err == nil {
		t.Fatalf("Should only be able to create blocks.")
	}
}

func Test_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/peers":
			w.Write([]byte(`{"count":2,"peers":[{"id":"peerA"},{"id":"peerB"}]}`))
		case "/v1/chain":
			w.Write([]byte(`[{"id":0,"previous_hash":"genesis"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer srv.Close()

	out, err := execute(t, srv, "ls", "p")
	if err != nil {
		t.Fatalf("Should be able to list the peers: %s", err)
	}
	if out != "peerA\npeerB\n" {
		t.Fatalf("Should print one peer per line, got %q", out)
	}

	out, err = execute(t, srv, "ls", "c")
	if err != nil {
		t.Fatalf("Should be able to list the chain: %s", err)
	}
	if !strings.Contains(out, `"previous_hash": "genesis"`) {
		t.Fatalf("Should print the chain as indented JSON, got %q", out)
	}

	if _, err := execute(t, srv, "status"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Should report the node's error, got %v", err)
	}
}
