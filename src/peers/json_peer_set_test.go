package peers

import (
	"os"
	"testing"

	"github.com/taskmesh/taskmesh/src/crypto/keys"
)

func TestJSONPeerSet(t *testing.T) {
	dir, err := os.MkdirTemp("", "taskmesh")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONPeerSet(dir)

	// missing file
	if _, err := store.Peers(); err == nil {
		t.Fatalf("reading a missing peers file should fail")
	}

	var roster []*Peer
	for i := 0; i < 3; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		roster = append(roster, NewPeer(keys.PublicKeyHex(&key.PublicKey), "node"+string(rune('0'+i))))
	}

	if err := store.Write(roster); err != nil {
		t.Fatalf("err: %v", err)
	}

	got, err := store.Peers()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(got) != len(roster) {
		t.Fatalf("got %d peers, expected %d", len(got), len(roster))
	}

	for i := range roster {
		if got[i].PubKeyHex != roster[i].PubKeyHex {
			t.Fatalf("peer %d: key mismatch", i)
		}
		if got[i].Moniker != roster[i].Moniker {
			t.Fatalf("peer %d: moniker mismatch", i)
		}

		raw, err := got[i].PubKeyBytes()
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if keys.ToPublicKey(raw) == nil {
			t.Fatalf("peer %d: stored key should decode to a curve point", i)
		}
	}
}
