// Package envelope implements the hybrid encryption applied to assets before
// they are uploaded.
//
// Every blob gets a fresh 256-bit content key and IV. The content key is
// wrapped for the recipient with ECIES over secp256k1: an ephemeral key pair is
// generated, the ECDH secret is stretched with HKDF-SHA256 into a key
// encryption key, and the content key is sealed with AES-256-GCM. The wrapped
// key header is always HeaderSize bytes; framing of everything after it
// depends on that.
//
// Wire format:
//
//	[wrapped key header: 93 bytes] [IV: 16 bytes] [base64(AES-256-CTR ciphertext)]
//
// Inputs whose encoded form would exceed the engine's buffer ceiling are
// processed as a stream: the file is read in fixed-size chunks that pass
// through one CTR stream and a base64 encoder into a temporary file, so memory
// stays bounded by the chunk size. Any failure removes the partial output.
package envelope
