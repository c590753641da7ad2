package main

import (
	"os"

	"github.com/abhisek/kgraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
