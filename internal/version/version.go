// Package version holds build identification, overridable via ldflags.
package version

var (
	// Version is the semantic version of this build
	Version = "0.4.0"
	// Commit is the git commit the binary was built from
	Commit = "unknown"
	// Date is the build timestamp
	Date = "unknown"
)
