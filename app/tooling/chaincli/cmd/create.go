package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create b <data>",
	Short: "Queue data to be mined into a new block.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  createRun,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func createRun(cmd *cobra.Command, args []string) error {
	if args[0] != "b" {
		return errors.New("only blocks can be created: create b <data>")
	}

	data, err := json.Marshal(struct {
		Data string `json:"data"`
	}{
		Data: strings.TrimSpace(strings.Join(args[1:], " ")),
	})
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := send(http.MethodPost, "/v1/blocks", string(data), &resp); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Status)

	return nil
}
