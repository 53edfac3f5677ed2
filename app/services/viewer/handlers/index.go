package handlers

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ardanlabs/floodchain/foundation/web"
)

//go:embed views/index.html
var indexHTML string

// index renders the viewer page for the node it is pointed at.
type index struct {
	tmpl     *template.Template
	build    string
	nodeHost string
}

func newIndex(build string, nodeHost string) (*index, error) {
	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}

	ig := index{
		tmpl:     tmpl,
		build:    build,
		nodeHost: nodeHost,
	}

	return &ig, nil
}

func (ig *index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data := struct {
		Build    string
		NodeHost string
	}{
		Build:    ig.build,
		NodeHost: ig.nodeHost,
	}

	var buf bytes.Buffer
	if err := ig.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("executing index: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	web.SetStatusCode(ctx, http.StatusOK)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}

	return nil
}
