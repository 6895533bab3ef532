package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Short returns a 12-character prefix for display in listings.
func Short(b []byte) string {
	return SHA256(b)[:12]
}
