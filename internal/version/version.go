// Package version holds build information, set at build time via
// -ldflags "-X github.com/amread/airflow/internal/version.Version=...".
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("pigrun %s (commit %s, built %s)", Version, Commit, BuildDate)
}
