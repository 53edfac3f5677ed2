package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:       "ls p|c",
	Short:     "List the known peers (p) or print the chain (c).",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"p", "c"},
	RunE:      listRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a summary of the node.",
	Args:  cobra.NoArgs,
	RunE:  statusRun,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
}

func listRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch args[0] {
	case "p":
		var resp struct {
			Peers []struct {
				ID string `json:"id"`
			} `json:"peers"`
		}
		if err := send(http.MethodGet, "/v1/peers", "", &resp); err != nil {
			return err
		}

		for _, pr := range resp.Peers {
			fmt.Fprintln(out, pr.ID)
		}

	case "c":
		var chain []json.RawMessage
		if err := send(http.MethodGet, "/v1/chain", "", &chain); err != nil {
			return err
		}

		data, err := json.MarshalIndent(chain, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}

	return nil
}

func statusRun(cmd *cobra.Command, args []string) error {
	var status map[string]any
	if err := send(http.MethodGet, "/v1/status", "", &status); err != nil {
		return err
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}
