// Package version holds build-time version information for the civic binary.
// The variables are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/civic-go/internal/version.Version=v1.2.3 \
//	                    -X github.com/54b3r/civic-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/civic-go/internal/version.BuildDate=2026-01-01"
//
// Builds without ldflags report "dev" and "unknown".
package version

import "fmt"

// Version is the semantic version of the binary (e.g. "v1.2.3").
var Version = "dev"

// Commit is the short git SHA of the commit the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC date the binary was built (RFC3339 format).
var BuildDate = "unknown"

// String renders the version line printed by `civic version`.
func String() string {
	return fmt.Sprintf("civic %s (commit %s, built %s)", Version, Commit, BuildDate)
}
