package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"darkspeak/internal/domain"
)

// GenerateIdentity returns a new Ed25519 signing keypair, the long-term
// identity a darkspeak endpoint advertises to peers.
func GenerateIdentity() (domain.Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	copy(id.Private[:], priv)
	copy(id.Public[:], pub)
	return id, nil
}

// Sign signs msg with priv and returns the signature.
func Sign(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv.Slice()), msg)
}

// Verify reports whether sig is a valid signature of msg under pub.
func Verify(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub.Slice()), msg, sig)
}
