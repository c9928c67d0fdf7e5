package version

// Version is stamped at build time with -ldflags "-X github.com/psu-rc/rcops/internal/version.Version=...".
var Version = "dev"
