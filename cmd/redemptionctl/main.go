package main

import (
	"fmt"
	"os"

	"redemption-server/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.NewRootCommand(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
