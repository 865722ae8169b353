// Package ledger keeps dreary's local state in SQLite: a journal of import
// runs, a cache of uploaded blobs keyed by content hash, and a per-account lock
// that keeps two imports from writing to the same repository at once.
//
// The PDS remains the source of truth for records. Losing the ledger only
// costs run history and forces blobs to be uploaded again.
package ledger
