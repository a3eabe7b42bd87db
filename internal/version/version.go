// Package version provides build-time metadata for the loan API service.
// These variables are populated via -ldflags during the Docker build process.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	// Version is the semantic version or git commit hash (e.g., "v1.0.0" or "a1b2c3d").
	// Set via: -ldflags "-X loanapi/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC timestamp when the binary was built.
	// Set via: -ldflags "-X loanapi/internal/version.BuildDate=..."
	BuildDate = "unknown"

	// GitCommit is the git commit SHA of the source code.
	// Set via: -ldflags "-X loanapi/internal/version.GitCommit=..."
	GitCommit = "unknown"
)

// Info holds all build metadata and runtime information.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata and runtime information.
// Instance ID and hostname are computed once on first call and cached.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
		}
	})
	return info
}

// getHostname returns the system hostname, fallback to "unknown" on error.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// String is the build line printed when the loan API starts, e.g.
// "Loan API v1.0.0 (commit a1b2c3d, built 2024-02-14T12:00:00Z)".
func (i Info) String() string {
	return fmt.Sprintf("Loan API %s (commit %s, built %s)", i.Version, shortCommit(i.GitCommit), i.BuildDate)
}

// shortCommit trims a full SHA to the seven characters git prints by default.
func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// UserAgent identifies a loanapi component in outbound HTTP requests, e.g. "loanapi-healthcheck/v1.0.0".
func (i Info) UserAgent(component string) string {
	return fmt.Sprintf("loanapi-%s/%s", component, i.Version)
}

// LogAttrs returns the build fields attached to structured (json/text) log records.
func (i Info) LogAttrs() []any {
	return []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("build_date", i.BuildDate),
	}
}
