// Package version holds build metadata stamped in via -ldflags.
package version

var (
	// Version is the release version of the binary.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)
