package main

import (
	"os"

	"github.com/kstvn/kestrel/cmd/kestrel/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
