// Package crypto exposes the identity primitives used by darkspeak.
//
// Contents
//
//   - Ed25519 identity generation, signing and verification (GenerateIdentity,
//     Sign, Verify)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Keys use the fixed-size array types defined in internal/domain to avoid
// accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on Wipe when practical to reduce their lifetime in
// memory.
package crypto
