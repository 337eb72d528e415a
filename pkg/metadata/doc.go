// Package metadata holds the token metadata document: an open, ordered
// mapping from field name to value that is checked against a schema before
// it is published.
package metadata
