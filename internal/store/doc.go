// Package store implements darkspeak's persistence contracts.
//
// The local identity is kept in a single passphrase-encrypted file
// (IdentityFileStore); File transfer records live in an embedded bbolt
// database (BoltFileStore) keyed by id with a secondary index on
// (conversation, hash), giving lookups by both the primary-id and
// (conversation, hash) paths callers need.
// Per-record mutual exclusion falls out of bbolt's serialized writer
// transactions rather than an additional lock.
package store
