// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the /health endpoint returns HTTP 200, and 1
// otherwise. Compile with CGO_ENABLED=0 for a fully static binary.
package main

import (
	"net/http"
	"os"
	"time"

	"loanapi/internal/version"
)

func main() {
	url := "http://localhost:3000/health"
	for _, key := range []string{"LOANAPI_PORT", "PORT"} {
		if port := os.Getenv(key); port != "" {
			url = "http://localhost:" + port + "/health"
			break
		}
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		os.Exit(1)
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent("healthcheck"))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
