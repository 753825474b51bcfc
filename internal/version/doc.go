// Package version exposes build metadata for shellexec.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
package version
