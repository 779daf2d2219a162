package main

import (
	"os"

	"github.com/NAMEAMITSONI/authopsy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
