// Package version exposes build version information, injected via ldflags.
package version

// Build information. Populated at build time with
// -ldflags "-X github.com/Sumatoshi-tech/githarvest/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
