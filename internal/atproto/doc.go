// Package atproto is a thin XRPC client for the repository endpoints the
// importers need.
//
// A Resolver turns handles into DIDs and DIDs into PDS endpoints without
// authentication. A Client carries an authenticated session against one PDS
// and exposes createRecord, getRecord, listRecords, applyWrites, uploadBlob,
// and getBlob. Access tokens are refreshed once when the server reports them
// expired; every other failure surfaces as an *Error to the caller.
//
// The package also owns AT-URI parsing and the millisecond UTC timestamp
// format used by dev.dreary.* records.
package atproto
