// Package main prints the stored hash of a raw API token. Only hashes are kept
// in the api_tokens table, so this is how an operator finds the row for a token
// someone reports as leaked, or seeds a known token into a local database.
//
// Usage: hash <token>   (or pipe the token on stdin)
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tenantry/tenantry/internal/auth"
)

func main() {
	raw := ""
	if len(os.Args) > 1 {
		raw = os.Args[1]
	} else {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		raw = line
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		fmt.Fprintln(os.Stderr, "usage: hash <token>")
		os.Exit(2)
	}
	fmt.Println(auth.HashToken(raw))
}
