//go:build ignore

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Minimal stand-in for the pscale CLI: answers the subcommands the cli
// backend issues with JSON, and echoes shell input back as text.
func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pscale <command>")
		os.Exit(2)
	}

	org := os.Getenv("PLANETSCALE_ORG")
	var out any

	switch {
	case len(args) >= 2 && args[0] == "database" && args[1] == "list":
		out = []any{
			map[string]any{"name": "shop", "organization": org},
		}
	case len(args) >= 3 && args[0] == "branch" && args[1] == "list":
		out = []any{
			map[string]any{"name": "main", "database": args[2], "production": true},
		}
	case len(args) >= 4 && args[0] == "branch" && args[1] == "schema":
		if args[3] != "main" {
			fmt.Fprintf(os.Stderr, "Error: branch %s does not exist in database %s\n", args[3], args[2])
			os.Exit(1)
		}
		out = []any{
			map[string]any{"name": "users", "raw": "CREATE TABLE `users` (`id` int)"},
		}
	case args[0] == "shell":
		query, _ := io.ReadAll(os.Stdin)
		fmt.Printf("ran: %s\n", strings.TrimSpace(string(query)))
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", strings.Join(args, " "))
		os.Exit(1)
	}

	data, _ := json.Marshal(out)
	fmt.Println(string(data))
}
