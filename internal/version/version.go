package version

import "fmt"

var (
	// Version is the current application version.
	// It should be populated by the build system (ldflags).
	Version = "v0.3.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// Full returns the one-line version banner printed by `vidrec version`.
func Full() string {
	return fmt.Sprintf("vidrec %s (commit: %s, built: %s)", Version, Commit, Date)
}
