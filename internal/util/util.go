package util

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58"
)

// Fingerprint returns a short Base58-encoded SHA256 digest of data.
// Run summaries record the fingerprint of the staging file that produced
// them so a result file can be traced back to its exact input.
func Fingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	return base58.Encode(hash[:])
}

// FingerprintFile computes the fingerprint of a file's contents.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return base58.Encode(h.Sum(nil)), nil
}
