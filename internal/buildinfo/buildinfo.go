// Package buildinfo provides information about the build of the client.
package buildinfo

import "fmt"

// Info holds version information about the client build.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Get() Info {
	// Set via -ldflags "-X 'nexusprover/internal/buildinfo.version=v0.10.0'
	// -X 'nexusprover/internal/buildinfo.commit=abcd' -X 'nexusprover/internal/buildinfo.date=2026-08-01'"
	return Info{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// UserAgent returns the User-Agent header value sent on every orchestrator request
func UserAgent() string { return fmt.Sprintf("nexus-cli/%s", version) }

// Timestamp returns the X-Build-Timestamp header value
func Timestamp() string { return date }

var (
	version = "0.0.0-dev"
	commit  = "none"
	date    = "unknown"
)
