// Package cmd contains the chaincli commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var url string

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

var rootCmd = &cobra.Command{
	Use:           "chaincli",
	Short:         "Operate a floodchain node",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the command selected by the command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// =============================================================================

var client = http.Client{
	Timeout: 10 * time.Second,
}

// apiError is the document the node returns on failure.
type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// send performs the call against the node and decodes the response into
// dataRecv when provided.
func send(method string, path string, body string, dataRecv any) error {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(url, "/")+path, r)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil {
			return fmt.Errorf("node responded %s", resp.Status)
		}

		if len(ae.Fields) > 0 {
			return fmt.Errorf("node responded %s: %s: %v", resp.Status, ae.Error, ae.Fields)
		}
		return fmt.Errorf("node responded %s: %s", resp.Status, ae.Error)
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
