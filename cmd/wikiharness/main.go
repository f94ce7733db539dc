package main

import "github.com/information-sharing-networks/wiki-harness/internal/cli"

func main() {
	cli.Execute()
}
