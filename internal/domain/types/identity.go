package types

// Ed25519Public is a signing public key, the stable cryptographic
// identity of a peer.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Identity holds the long-term signature keypair that authenticates one
// side of a session. The onion address under which a peer is reachable
// is derived from or bound to Public by the application's onion-service
// lifecycle (out of scope here).
type Identity struct {
	Private Ed25519Private `json:"private"`
	Public  Ed25519Public  `json:"public"`
}

// ConnectData carries the parameters needed to dial or accept a peer.
// Immutable after construction.
type ConnectData struct {
	RemoteAddress   OnionAddress
	Local           Identity
	ExpectedRemote  *Ed25519Public // nil if the remote identity isn't known in advance
}

// NewConnectData builds an immutable ConnectData. expectedRemote may be
// nil, but peer.NewOutbound refuses to dial with a ConnectData that
// lacks it, since the handshake gives the dialing side no other way to
// learn the remote identity.
func NewConnectData(remote OnionAddress, local Identity, expectedRemote *Ed25519Public) ConnectData {
	cd := ConnectData{RemoteAddress: remote, Local: local}
	if expectedRemote != nil {
		pub := *expectedRemote
		cd.ExpectedRemote = &pub
	}
	return cd
}
