// Package preflight provides readiness checks for the local state directory,
// the account's PDS, and the external tools dreary depends on.
//
// The CLI "dreary status" command runs them all; importers call
// CheckDirectoryAccess on their state directory before taking the run lock.
package preflight
