// Package fingerprint computes content hashes for rendered output.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 digest of data.
func Of(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
