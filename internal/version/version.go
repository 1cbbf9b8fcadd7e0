// Package version holds build metadata stamped in at link time.
package version

// Version is the release version, overridden via ldflags.
var Version = "dev"

// Commit is the git revision the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC timestamp of the build.
var BuildDate = "unknown"
