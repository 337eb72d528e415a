// Package fpcache is the local fingerprint cache: an append-only log that maps
// an asset's content fingerprint to the content address it was uploaded under,
// so the same bytes are never uploaded twice.
//
// The log holds one JSON object per line. Open reads it once and builds an
// in-memory index in which the most recent entry for a key wins; lines that do
// not parse are logged and skipped. Record appends a single line with one
// write on an O_APPEND descriptor while holding an advisory file lock, so
// concurrent writers, in this process or another, never interleave partial
// lines.
//
// Keys are content hashes (BLAKE3), not file names: two different files that
// happen to share a basename never collide.
package fpcache
