// Package fingerprint computes the metadata fingerprint of a single file:
// a SHA-256 content hash plus owner, group, size, permission bits,
// modification time and the media type derived from the file extension.
//
// Extraction is a pure read. A path that vanished between the change
// notification and the read yields an ExtractionError of kind NotFound,
// which callers are expected to treat as routine.
package fingerprint
