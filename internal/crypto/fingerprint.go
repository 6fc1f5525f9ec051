package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"darkspeak/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key, suitable
// for display or logging. It hashes with SHA-256 and truncates to 10
// bytes (20 hex chars).
func Fingerprint(pub domain.Ed25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub.Slice())
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}
