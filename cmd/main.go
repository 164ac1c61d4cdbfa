package main

import "github.com/canopy-network/shardnode/cmd/cli"

func main() {
	cli.Execute()
}
