package main

import (
	"os"

	"github.com/hatlonely/pgsearch/cmd/pgsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
