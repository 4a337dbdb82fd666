package peers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const (
	jsonPeerSetPath = "peers.json"
)

// JSONPeerSet is used to read and write a roster of peers from/to a file in
// JSON format.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a new JSONPeerSet from a base directory containing a
// peers.json file.
func NewJSONPeerSet(base string) *JSONPeerSet {
	path := filepath.Join(base, jsonPeerSetPath)

	store := &JSONPeerSet{
		path: path,
	}

	return store
}

// Peers reads and parses the underlying file.
func (store *JSONPeerSet) Peers() ([]*Peer, error) {
	store.l.Lock()
	defer store.l.Unlock()

	// Read the file
	buf, err := os.ReadFile(store.path)
	if err != nil {
		return nil, err
	}

	// Unmarshal the peers
	var peerSet []*Peer
	if err := json.Unmarshal(buf, &peerSet); err != nil {
		return nil, err
	}

	return peerSet, nil
}

// Write persists a roster to the underlying file.
func (store *JSONPeerSet) Write(peerSet []*Peer) error {
	store.l.Lock()
	defer store.l.Unlock()

	buf, err := json.MarshalIndent(peerSet, "", "\t")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(store.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(store.path, buf, 0644)
}
