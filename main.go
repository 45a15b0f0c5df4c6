package main

import "github.com/pearl-agents/staking-sidecar/cmd"

func main() {
	cmd.Execute()
}
