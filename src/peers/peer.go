// Package peers deals with the local roster of known mesh identities. The
// roster is advisory: it seeds admission filters and diagnostics, it does not
// gate who may join the mesh.
package peers

import (
	"github.com/taskmesh/taskmesh/src/common"
	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

// Peer is a known mesh identity. Addrs optionally carries full multiaddrs
// (with /p2p/ suffix) that can be dialed to bootstrap the mesh.
type Peer struct {
	PubKeyHex string
	Moniker   string
	Addrs     []string `json:",omitempty"`

	pubKeyBytes []byte
}

// NewPeer creates a Peer from a hex-encoded public key and a moniker.
func NewPeer(pubKeyHex, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}
}

// PubKeyBytes returns the raw public key bytes, decoding and caching them on
// first use.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	if p.pubKeyBytes != nil {
		return p.pubKeyBytes, nil
	}

	res, err := common.DecodeFromString(p.PubKeyHex)
	if err != nil {
		return nil, err
	}

	p.pubKeyBytes = res
	return res, nil
}

// ID returns a short numeric identifier derived from the public key, for
// logs and stats only.
func (p *Peer) ID() uint32 {
	raw, err := p.PubKeyBytes()
	if err != nil {
		return 0
	}
	pub := keys.ToPublicKey(raw)
	if pub == nil {
		return 0
	}
	return keys.PublicKeyID(pub)
}
