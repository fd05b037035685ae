// Command circarectl drives an Arch-Circare navigator session from the
// terminal. The session id and state live in a local file store, so
// consecutive invocations continue the same session.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
