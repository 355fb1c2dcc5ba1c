package system

// Version is the release version, injected at build time via
// -ldflags "-X github.com/jobwatch/upwork-fetcher/pkg/system.Version=...".
var Version = "0.0.0-dev"

// Commit is the git commit the binary was built from, injected at build time.
var Commit = ""
