package crypto

import "crypto/sha256"

// SHA256 returns the SHA256 digest of hashBytes.
func SHA256(hashBytes []byte) []byte {
	hasher := sha256.New()
	hasher.Write(hashBytes)
	hash := hasher.Sum(nil)
	return hash
}
