package keys

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcec"

	"github.com/taskmesh/taskmesh/src/crypto"
)

/*
Signatures are produced in btcec's compact recoverable format: 65 bytes from
which the verifier derives the signer's public key. The digest is always the
SHA256 hash of the exact bytes passed in; callers must therefore sign and
verify the same serialization.
*/

// Sign computes the SHA256 digest of data and produces a compact recoverable
// signature over it with the given private key.
func Sign(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("nil private key")
	}
	digest := crypto.SHA256(data)
	return btcec.SignCompact(btcec.S256(), (*btcec.PrivateKey)(priv), digest, false)
}

// Recover recomputes the SHA256 digest of data and recovers the public key
// from a compact signature produced by Sign. It is up to the caller to compare
// the recovered key against any identity claimed in the payload.
func Recover(data []byte, sig []byte) (*ecdsa.PublicKey, error) {
	digest := crypto.SHA256(data)
	pub, _, err := btcec.RecoverCompact(btcec.S256(), sig, digest)
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}

// Verify recovers the public key from sig and compares it against pub. It
// returns true only when the signature is valid and was produced by the
// holder of pub.
func Verify(pub *ecdsa.PublicKey, data []byte, sig []byte) bool {
	recovered, err := Recover(data, sig)
	if err != nil {
		return false
	}
	return recovered.X.Cmp(pub.X) == 0 && recovered.Y.Cmp(pub.Y) == 0
}
