package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("legalsmart %s (commit: %s, built: %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}
