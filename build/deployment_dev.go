//go:build dev
// +build dev

package build

// Deployment selects development logging, see LoggingType.
const Deployment = Development
