// Package main is a smoke-test utility that verifies the tenantry HTTP API is
// reachable. It calls /health and /auth/whoami and prints each status code and
// body. Set TNT_TEST_TOKEN to check that a token or session authenticates.
//
// Usage: test-api [base-url]   (default http://localhost:8080)
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = strings.TrimRight(os.Args[1], "/")
	}
	client := &http.Client{Timeout: 10 * time.Second}

	failed := false
	for _, path := range []string{"/health", "/auth/whoami"} {
		if !check(client, base+path, os.Getenv("TNT_TEST_TOKEN")) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func check(client *http.Client, url, token string) bool {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("GET %s\nError: %v\n\n", url, err)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error reading body: %v\n", err)
		return false
	}

	fmt.Printf("GET %s\nStatus: %d\nResponse:\n%s\n\n", url, resp.StatusCode, strings.TrimSpace(string(body)))
	return resp.StatusCode == http.StatusOK
}
