// Package version holds the build version reported by the /version endpoint.
package version

// Current is the application version, overridable at build time with
// -ldflags "-X quell/internal/shared/version.Current=v1.2.3".
var Current = "dev"
