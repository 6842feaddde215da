// Package main is the entry point for the florasync ingestion service.
package main

import (
	"fmt"
	"os"

	"github.com/florasync/florasync/cmd/florasync/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
