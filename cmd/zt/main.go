// Command zt is the Zeilumara time CLI: a dual clock, events anchored in
// Zeilumara time and their notification triggers, kept in one SQLite file.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zt:", err)
		os.Exit(1)
	}
}
