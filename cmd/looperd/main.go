package main

import (
	"fmt"
	"os"

	"looperd/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "looperd:", err)
		os.Exit(1)
	}
}
