// Package version records the agent version stamped at build time.
package version

// Version is overridden via
// -ldflags "-X github.com/DavidIlie/claude-code-prometheus/internal/version.Version=v1.2.3".
var Version = "dev"
