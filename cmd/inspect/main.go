// Command inspect opens a parlor store directly and dumps raw keys, for
// debugging a stopped server's data. Run it against <db>/store.
package main

import (
	"flag"
	"fmt"
	"os"

	"parlor/pkg/store"
)

var prefixes = []struct{ prefix, what string }{
	{"r:", "rooms, memberships and room timelines"},
	{"d:", "direct timelines"},
	{"m:", "messages by id"},
	{"dl:", "delivery receipts"},
	{"rx:", "reactions"},
	{"p:", "presence records"},
	{"i:", "invitations"},
	{"b:", "user blocks"},
	{"rp:", "moderation reports"},
	{"rel:", "user to room relations"},
	{"idx:", "invite indexes"},
	{"system:", "version and migration markers"},
}

func main() {
	var (
		path   = flag.String("path", "", "path to the pebble store directory")
		prefix = flag.String("prefix", "", "list keys under this prefix")
		key    = flag.String("key", "", "print the raw value of one key")
	)
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	if err := store.Open(*path); err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *key != "":
		v, err := store.GetKey(*key)
		if err != nil {
			if store.IsNotFound(err) {
				fmt.Fprintf(os.Stderr, "key not found: %s\n", *key)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "get: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(v)
		fmt.Println()
	case *prefix != "":
		ks, err := store.ListKeys(*prefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list: %v\n", err)
			os.Exit(1)
		}
		for _, k := range ks {
			fmt.Println(k)
		}
		fmt.Fprintf(os.Stderr, "%d keys\n", len(ks))
	default:
		fmt.Println("key space summary:")
		for _, p := range prefixes {
			ks, err := store.ListKeys(p.prefix)
			if err != nil {
				fmt.Fprintf(os.Stderr, "list %s: %v\n", p.prefix, err)
				os.Exit(1)
			}
			fmt.Printf("  %-8s %6d  %s\n", p.prefix, len(ks), p.what)
		}
	}
}
