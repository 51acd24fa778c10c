// Package storage is the relay's transfer store.
//
// An Engine keeps the table of transfers in memory and delegates bytes to a
// BlobStore and metadata to a RecordIndex. Uploads are staged in a local file
// and become visible only after Commit; readers pin the record they stream so
// that deletion and expiry never cut an in-flight download short.
package storage
