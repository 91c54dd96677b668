//go:build !dev
// +build !dev

package build

// Deployment selects production logging through the caller's backend.
const Deployment = Production
