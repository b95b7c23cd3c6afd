// Package version holds build metadata set with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for the version command and the health
// endpoint.
func String() string {
	return fmt.Sprintf("exoquest %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
