//go:build !debug
// +build !debug

package build

// LogLevel is the level of stdout loggers in development builds.
var LogLevel = "info"
