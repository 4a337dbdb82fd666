// Package keys implements the public key cryptography used throughout
// taskmesh.
//
// Every node owns a secp256k1 key-pair. The public key is the node's identity
// on the mesh: it is what requesters insert into admission filters, and what
// other peers recover from message signatures. Signatures are produced in
// compact recoverable form, so a verifier derives the signer's public key from
// the signature itself without knowing it in advance.
//
// We chose the secp256k1 curve because it is also used by Bitcoin and
// Ethereum, which means existing Bitcoin and Ethereum keys can operate a
// taskmesh node.
package keys
