package fpcache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

const keyPrefix = "blake3:"

// KeyForBytes fingerprints inline content.
func KeyForBytes(data []byte) string {
	digest := blake3.Sum256(data)
	return keyPrefix + hex.EncodeToString(digest[:])
}

// KeyForFile fingerprints the file at path by streaming its content.
func KeyForFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for fingerprinting: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return keyPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// NamespacedKey separates fingerprints of the same bytes stored in different
// forms, e.g. plaintext and encrypted uploads.
func NamespacedKey(namespace string, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + "/" + key
}
