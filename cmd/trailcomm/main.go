// Package main provides the trailcomm CLI: hiker community analysis of a
// trail journal table, from the command line or as an HTTP service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
