//go:build debug
// +build debug

package build

// LogLevel specifies the log level used by stdout loggers in debug builds.
var LogLevel = "debug"
