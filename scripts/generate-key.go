// Package main is a development utility that mints a session JWT for a local
// user, for use with session mode "jwt". It prints the token and a ready-to-use
// Authorization header. Signing uses TNT_SESSION_SECRET (a random secret is
// generated in dev mode, so set it to match the running server).
//
// Usage: go run ./scripts <user-id> [email] [ttl]
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tenantry/tenantry/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <user-id> [email] [ttl]", os.Args[0])
	}
	userID := os.Args[1]
	email := ""
	if len(os.Args) > 2 {
		email = os.Args[2]
	}
	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			log.Fatalf("invalid ttl %q: %v", os.Args[3], err)
		}
		ttl = d
	}

	if err := auth.ValidateSessionSecret(); err != nil {
		log.Fatal(err)
	}
	token, err := auth.GenerateSessionJWT(userID, email, ttl)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Session Token Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nUser ID: %s\nExpires: %s\n", userID, time.Now().Add(ttl).UTC().Format(time.RFC3339))
	fmt.Printf("\nToken: %s\n", token)
	fmt.Println("\n==========================================================")
	fmt.Printf("Authorization Header: Bearer %s\n", token)
	fmt.Println("==========================================================")
}
