// This program talks to a running node over its HTTP API.
package main

import "github.com/ardanlabs/floodchain/app/tooling/chaincli/cmd"

func main() {
	cmd.Execute()
}
