// Package buildinfo identifies the confwatch build. Both variables are
// overridden at link time, e.g.
//
//	go build -ldflags "-X github.com/lc/confwatch/internal/buildinfo.Version=v0.2.0"
package buildinfo

// Version is the release tag.
var Version = "v0.1.0"

// Commit is the source revision. "unknown" keeps `go run` and tests working.
var Commit = "unknown"

// String formats the build as "v0.1.0 (unknown)".
func String() string {
	return Version + " (" + Commit + ")"
}
