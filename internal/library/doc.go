// Package library manages dev.dreary.library records: books uploaded with
// their PDF metadata, shelves, and the shelfitem records joining the two.
package library
