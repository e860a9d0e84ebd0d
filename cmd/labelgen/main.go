package main

import (
	"os"

	"github.com/abramin/golabel/cmd/labelgen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
