// Package console reads operator commands from a line oriented stream
// and hands them to the node's event loop.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ardanlabs/floodchain/foundation/blockchain/worker"
)

// Commander is the behavior required to hand a command to the node.
type Commander interface {
	SignalCommand(cmd worker.Command) bool
}

// Parse turns an operator line into a command. It reports false for
// anything it doesn't understand.
//
//	create b <data>   mine a new block holding data
//	ls p              list the known peers
//	ls c              print the chain
func Parse(line string) (worker.Command, bool) {
	line = strings.TrimSpace(line)

	switch {
	case line == "ls p":
		return worker.Command{Kind: worker.ListPeers}, true

	case line == "ls c":
		return worker.Command{Kind: worker.ListChain}, true
	}

	if data, ok := strings.CutPrefix(line, "create b"); ok {
		data = strings.ToValidUTF8(strings.TrimSpace(data), "\uFFFD")
		return worker.Command{Kind: worker.CreateBlock, Data: data}, true
	}

	return worker.Command{}, false
}

// Run reads commands until the reader is exhausted.
func Run(r io.Reader, cmds Commander, ev func(v string, args ...any)) error {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, ok := Parse(line)
		if !ok {
			ev("console: unknown command %q", line)
			continue
		}

		if !cmds.SignalCommand(cmd) {
			ev("console: command %s not accepted", cmd.Kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading console: %w", err)
	}

	return nil
}
