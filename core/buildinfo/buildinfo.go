// Package buildinfo carries version stamps injected with -ldflags, for example
//
//	-X 'github.com/m3rciful/kinobot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/kinobot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/kinobot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import "strings"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source commit.
	Commit = "local"
	// Date is the build time in RFC3339.
	Date = ""
)

// String renders the stamps for --version output, e.g. "v1.2.3 (abcdef0, 2025-08-30T12:00:00Z)".
func String() string {
	parts := []string{Commit}
	if Date != "" {
		parts = append(parts, Date)
	}
	return Version + " (" + strings.Join(parts, ", ") + ")"
}
