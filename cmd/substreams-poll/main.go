package main

import (
	"github.com/streamingfast/substreams-poll/cli"
)

func main() {
	cli.Main()
}
