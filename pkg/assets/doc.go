// Package assets finds the file-bearing fields of a metadata document and
// replaces them with content addresses.
//
// A field value is classified as inline content ([]byte), an existing content
// address, or a local path. Each asset to upload flows through the
// fingerprint cache, optional encryption and the content store independently
// and concurrently. The document is only rewritten once every asset has been
// uploaded, so a failure never leaves a partially resolved document behind.
package assets
