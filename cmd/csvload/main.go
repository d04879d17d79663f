package main

import (
	"fmt"
	"os"

	// register all backends with the storage factory.
	// config specifies which to use but the binary supports all of them.
	_ "csvload/internal/storage/all"
)

// main is the entry point for the csvload binary. It loads .env, then hands
// off to the cobra command tree.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
