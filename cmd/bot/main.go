package main

import (
	"fmt"
	"os"

	_ "time/tzdata"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
