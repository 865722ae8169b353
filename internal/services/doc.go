// Package services defines shared utilities consumed by the importers and the
// CLI.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, importer names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures read the same
//     way regardless of which importer raised them.
//
// Use these helpers when wiring new importers so error text and log fields
// stay uniform across the tool.
package services
