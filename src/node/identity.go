package node

import (
	"crypto/ecdsa"

	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

// Identity is the node's signing keypair plus cached derivations of the
// public key. It is created once at startup and never mutated afterwards, so
// it is safe to share across handlers without locking.
type Identity struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	pubBytes []byte
	pubHex   string
}

// NewIdentity precomputes the public key derivations.
func NewIdentity(key *ecdsa.PrivateKey, moniker string) *Identity {
	pubBytes := keys.FromPublicKey(&key.PublicKey)

	return &Identity{
		Key:      key,
		Moniker:  moniker,
		pubBytes: pubBytes,
		pubHex:   keys.PublicKeyHex(&key.PublicKey),
	}
}

// PublicKeyBytes returns the uncompressed public key. This is the identity
// tested against admission filters.
func (i *Identity) PublicKeyBytes() []byte {
	return i.pubBytes
}

// PublicKeyHex returns the hex representation of the public key, as used in
// publisher claims.
func (i *Identity) PublicKeyHex() string {
	return i.pubHex
}

// ID returns a short numeric identifier for logs and stats.
func (i *Identity) ID() uint32 {
	return keys.PublicKeyID(&i.Key.PublicKey)
}
