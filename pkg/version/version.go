package version

// Version is the reader's version, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/Spaceecs/book-reader-client-sub000/pkg/version.Version=1.0.0".
var Version = "dev"
