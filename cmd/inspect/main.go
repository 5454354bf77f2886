package main

import (
	"flag"
	"fmt"
	"os"

	"chatcore/pkg/store"
)

// Dumps store keys for debugging a database offline. The server must not
// hold the db when this runs; pebble locks the directory.
func main() {
	var p, prefix string
	flag.StringVar(&p, "db", "", "pebble db path to open")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (e.g. conv:, profile:)")
	flag.Parse()
	if p == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	if err := store.Open(p); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
