// Package version exposes build identification stamped at link time via
// -ldflags "-X github.com/luma-stream/mediadex/internal/version.Version=...".
package version

var (
	// Version is the semantic release version, "dev" for local builds.
	Version = "dev"
	// Commit is the short git hash of the build.
	Commit = "none"
	// BuiltAt is the build timestamp.
	BuiltAt = "unknown"
)
