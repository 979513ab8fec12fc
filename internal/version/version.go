// Package version holds the binary version and the output data-format version.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/kornysietsma/polyglot-code-scanner/internal/version.Version=1.0.0"
var (
	// Version is the semantic version of the scanner binary
	Version = "0.5.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// DataFormatVersion is the semantic version of the output document.
// Bump the major version when a field changes shape or meaning, the minor
// version when fields are added.
const DataFormatVersion = "1.1.0"

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "polyglot version " + Version + "\n" +
		"Data format: " + DataFormatVersion + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
